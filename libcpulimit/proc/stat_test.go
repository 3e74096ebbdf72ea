package proc

import (
	"errors"
	"testing"
)

func TestParseStatStandard(t *testing.T) {
	line := "128377 (cat) R 127912 128377 127912 34817 128377 4194304 90 0 0 0 7 3 0 0 25 5 1 0 7545849 18751488 252 18446744073709551615 94742542643200 94742542658614 140726597052192 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0 94742542670560 94742542671976 94742570721280 140726597055035 140726597055055 140726597055055 140726597058539 0\n"

	st, err := ParseStat(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Pid != 128377 || st.Comm != "cat" || st.State != 'R' || st.Ppid != 127912 {
		t.Fatalf("unexpected header fields: %+v", st)
	}
	if st.Utime != 7 || st.Stime != 3 || st.Ticks() != 10 {
		t.Fatalf("unexpected cpu fields: %+v", st)
	}
	if st.NumThreads != 1 || st.StartTime != 7545849 || st.Flags != 4194304 {
		t.Fatalf("unexpected trailing fields: %+v", st)
	}
}

func TestParseStatEvilProgramName(t *testing.T) {
	line := "144650 (evil program x) name!) S 120869 144650 120869 34819 144650 4194304 94 0 0 0 11 22 0 0 15 -5 1 0 8684651 18751488 274 18446744073709551615 0 0 0 0 0 0 0 0 0 0 17 3 0 0 0 0 0 0 0 0 0 0 0 0 42\n"

	st, err := ParseStat(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Comm != "evil program x) name!" {
		t.Fatalf("expected comm to end at the last parenthesis, got %q", st.Comm)
	}
	if st.Ppid != 120869 || st.Ticks() != 33 {
		t.Fatalf("unexpected fields: %+v", st)
	}
}

func TestParseStatMalformed(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"noParens", "12 cat R 1 2 3"},
		{"badPid", "x (cat) R 1 1 1 1 1 0 0 0 0 0 0 0 0 0 0 0 1 0 5"},
		{"truncated", "12 (cat) R 1 1 1 1 1 0 0 0 0 0 0"},
		{"badUtime", "12 (cat) R 1 1 1 1 1 0 0 0 0 0 abc 0 0 0 0 0 1 0 5"},
	}
	for _, tc := range cases {
		if _, err := ParseStat(tc.line); !errors.Is(err, ErrUnsupported) {
			t.Fatalf("%s: expected ErrUnsupported, got %v", tc.name, err)
		}
	}
}

func TestStatValidate(t *testing.T) {
	cases := []struct {
		name         string
		stat         Stat
		allowThreads bool
		want         error
	}{
		{"running", Stat{Pid: 1, State: 'R', NumThreads: 1}, false, nil},
		{"zombie", Stat{Pid: 1, State: 'Z', NumThreads: 1}, false, ErrNotFound},
		{"dead", Stat{Pid: 1, State: 'X', NumThreads: 1}, true, ErrNotFound},
		{"kthread", Stat{Pid: 2, State: 'S', Flags: pfKthread, NumThreads: 1}, true, ErrUnsupported},
		{"threaded", Stat{Pid: 1, State: 'S', NumThreads: 4}, false, ErrUnsupported},
		{"threadedAllowed", Stat{Pid: 1, State: 'S', NumThreads: 4}, true, nil},
	}
	for _, tc := range cases {
		err := tc.stat.Validate(tc.allowThreads)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}
