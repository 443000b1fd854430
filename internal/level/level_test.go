package level

import "testing"

func TestOrdering(t *testing.T) {
	order := []Level{Unset, Off, On, Debug, Info, Warn, Error}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("%v >= %v, want strict ascending order", order[i-1], order[i])
		}
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"info", Info},
		{"INFO", Info},
		{" warn ", Warn},
		{"WARNING", Warn},
		{"error", Error},
		{"fatal", Error},
		{"debug", Debug},
		{"on", On},
		{"off", Off},
		{"", Unset},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := Parse("loud"); err == nil {
		t.Error("Parse(\"loud\") succeeded, want error")
	}
}

func TestString(t *testing.T) {
	if got := Warn.String(); got != "WARN" {
		t.Errorf("Warn.String() = %q, want \"WARN\"", got)
	}
	if got := Level(42).String(); got != "LEVEL(42)" {
		t.Errorf("Level(42).String() = %q, want \"LEVEL(42)\"", got)
	}
}
