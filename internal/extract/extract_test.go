package extract

import (
	"reflect"
	"testing"
)

func TestPersonNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "underscore separated",
			in:   "Иванов_Иван_Иванович_снимок1",
			want: []string{"Иванов Иван Иванович"},
		},
		{
			name: "space separated",
			in:   "Умаров Арсен Рамазанович",
			want: []string{"Умаров Арсен Рамазанович"},
		},
		{
			name: "female patronymic",
			in:   "анализы Петрова Анна Сергеевна 2021",
			want: []string{"Петрова Анна Сергеевна"},
		},
		{
			name: "double barrelled surname",
			in:   "Петрова-Водкина Анна Сергеевна",
			want: []string{"Петрова-Водкина Анна Сергеевна"},
		},
		{
			name: "two names in one string",
			in:   "Иванов Иван Иванович и Сидоров Пётр Петрович",
			want: []string{"Иванов Иван Иванович", "Сидоров Пётр Петрович"},
		},
		{
			name: "lowercase parts rejected",
			in:   "иванов иван иванович",
			want: nil,
		},
		{
			name: "no patronymic suffix",
			in:   "Иванов Иван Степан",
			want: nil,
		},
		{name: "empty", in: "", want: nil},
		{name: "latin only", in: "scan_2020_final", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PersonNames(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PersonNames(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPersonNamesKeepsDuplicates(t *testing.T) {
	got := PersonNames("Иванов Иван Иванович Иванов Иван Иванович")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
}

func TestDates(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "dotted", in: "снимок 12.05.1987", want: []string{"12.05.1987"}},
		{name: "slashed", in: "12/05/1987", want: []string{"12.05.1987"}},
		{name: "single digit day and month", in: "рентген 3.4.1990", want: []string{"03.04.1990"}},
		{name: "month spelled out", in: "выписка 3 марта 1990", want: []string{"03.03.1990"}},
		{name: "invalid month dropped", in: "32.13.2020", want: nil},
		{name: "impossible day dropped", in: "31.02.2020", want: nil},
		{name: "unknown month word dropped", in: "3 гларта 1990", want: nil},
		{name: "empty", in: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dates(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dates(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPhones(t *testing.T) {
	if got := Phones("тел +7 909 123 4567"); len(got) == 0 {
		t.Error("expected at least one phone match")
	}
	if got := Phones("нет цифр"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
	if got := Phones(""); len(got) != 0 {
		t.Errorf("expected no matches on empty input, got %v", got)
	}
}

func TestEmails(t *testing.T) {
	got := Emails("контакт ivanov.i+lab@clinic-msk.ru конец")
	want := []string{"ivanov.i+lab@clinic-msk.ru"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Emails = %v, want %v", got, want)
	}
	if got := Emails("not-an-email"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestWhitespaceSplitter(t *testing.T) {
	tests := []struct {
		in                  string
		last, first, middle string
	}{
		{"Иванов Иван Иванович", "Иванов", "Иван", "Иванович"},
		{"Иванов Иван", "Иванов", "Иван", ""},
		{"Иванов", "Иванов", "", ""},
		{"", "", "", ""},
		{"Иванов Иван Иванович Оглы", "Иванов", "Иван", "Иванович Оглы"},
	}
	var s WhitespaceSplitter
	for _, tt := range tests {
		last, first, middle := s.Split(tt.in)
		if last != tt.last || first != tt.first || middle != tt.middle {
			t.Errorf("Split(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tt.in, last, first, middle, tt.last, tt.first, tt.middle)
		}
	}
}
