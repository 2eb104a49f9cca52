package ussd

import "testing"

func TestPressAdvancesUntilFinal(t *testing.T) {
	var m MenuState
	if m.Index() != 0 || m.Len() != 6 {
		t.Fatalf("unexpected start index=%d len=%d", m.Index(), m.Len())
	}
	for i := 1; i < m.Len(); i++ {
		if !m.Press('1') {
			t.Fatalf("press %d did not advance", i)
		}
		if m.Index() != i {
			t.Fatalf("expected index %d, got %d", i, m.Index())
		}
	}
	if !m.Final() || !m.Current().Final {
		t.Fatal("expected terminal step")
	}
	for _, k := range Keypad {
		if m.Press(k) {
			t.Fatalf("key %q advanced past the final step", k)
		}
	}
	if m.Index() != m.Len()-1 {
		t.Fatalf("index moved on terminal step: %d", m.Index())
	}
}

func TestEveryKeypadKeyAdvances(t *testing.T) {
	for _, k := range Keypad {
		var m MenuState
		if !m.Press(k) || m.Index() != 1 {
			t.Fatalf("key %q did not advance exactly one step", k)
		}
	}
}

func TestInvalidKeysIgnored(t *testing.T) {
	var m MenuState
	for _, k := range "abc+- " {
		if m.Press(k) {
			t.Fatalf("key %q accepted", k)
		}
	}
	if m.Index() != 0 {
		t.Fatalf("expected index 0, got %d", m.Index())
	}
}

func TestHeaderAndSteps(t *testing.T) {
	var m MenuState
	if m.Header() != "Step 1/6" {
		t.Fatalf("unexpected header %q", m.Header())
	}
	s := Steps()
	if len(s[0].Options) != 4 || !s[1].Input || !s[2].Input || !s[5].Final {
		t.Fatalf("menu shape changed: %+v", s)
	}
	s[0].Options[0] = "9"
	if Steps()[0].Options[0] != "1" {
		t.Fatal("Steps exposed internal slice")
	}
}
