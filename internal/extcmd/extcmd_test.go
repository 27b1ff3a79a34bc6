package extcmd

import (
	"testing"
	"time"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`/bin/sh -c "echo hi"`, []string{"/bin/sh", "-c", "echo hi"}},
		{`cmd 'single quoted' plain`, []string{"cmd", "single quoted", "plain"}},
		{`cmd escaped\ space`, []string{"cmd", "escaped space"}},
		{`cmd "a\"b"`, []string{"cmd", `a"b`}},
	}
	for _, c := range cases {
		got, err := Tokenize(c.in)
		if err != nil {
			t.Fatalf("tokenize(%q): %v", c.in, err)
		}
		if len(got) != len(c.want) {
			t.Fatalf("tokenize(%q) = %#v, want %#v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("tokenize(%q)[%d] = %q, want %q", c.in, i, got[i], c.want[i])
			}
		}
	}
}

func TestTokenizeUnterminatedQuote(t *testing.T) {
	if _, err := Tokenize(`cmd "unterminated`); err == nil {
		t.Fatalf("expected an error for an unterminated quote")
	}
}

func TestSubstituteArgNoInfiniteLoop(t *testing.T) {
	c := &Cmd{template: "run $X", substituted: "run $X"}
	c.SubstituteArg("$X", "prefix $X suffix")
	want := "run prefix $X suffix"
	if c.substituted != want {
		t.Fatalf("substituted = %q, want %q", c.substituted, want)
	}
}

func TestResetSubstituted(t *testing.T) {
	c := &Cmd{template: "run $X", substituted: "run $X"}
	c.SubstituteArg("$X", "value")
	c.ResetSubstituted()
	if c.substituted != c.template {
		t.Fatalf("reset did not restore the template")
	}
}

func TestCreateMissingFile(t *testing.T) {
	if _, err := Create("/no/such/binary-xyz --flag", time.Second); err == nil {
		t.Fatalf("expected an error for a nonexistent binary")
	}
}

func TestExecuteSoftAndHardTimeout(t *testing.T) {
	// S5: a command that ignores SIGTERM is hard-killed by 2T; the test
	// uses `sh -c` with a trap so the process survives SIGTERM until
	// SIGKILL arrives, matching the "sleep 60, timeout 1s" scenario
	// without actually sleeping 60s of wall-clock per test run.
	c, err := Create(`sh -c "trap '' TERM; sleep 5"`, 200*time.Millisecond)
	if err != nil {
		t.Skipf("sh not available in this environment: %v", err)
	}

	var sevs []Severity
	c.SetSink(func(sev Severity, line string) { sevs = append(sevs, sev) })

	start := time.Now()
	res, err := c.Execute()
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.HardKilled {
		t.Fatalf("expected the child to be hard-killed")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("execute took %v, expected termination within roughly 2x timeout", elapsed)
	}
}

func TestExecuteClassifiesOutputLines(t *testing.T) {
	c, err := Create(`sh -c "echo 'alert: boom'; echo 'plain line'"`, time.Second)
	if err != nil {
		t.Skipf("sh not available in this environment: %v", err)
	}
	var got []struct {
		sev  Severity
		line string
	}
	c.SetSink(func(sev Severity, line string) {
		got = append(got, struct {
			sev  Severity
			line string
		}{sev, line})
	})
	if _, err := c.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 classified lines, got %d: %+v", len(got), got)
	}
	if got[0].sev != SeverityAlert || got[0].line != "boom" {
		t.Fatalf("unexpected first line: %+v", got[0])
	}
	if got[1].sev != SeverityNotice || got[1].line != "plain line" {
		t.Fatalf("unexpected second line: %+v", got[1])
	}
}
