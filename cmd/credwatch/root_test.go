package main

import "testing"

func TestRootCommand_RegistersCommands(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"run", "worker", "config-check"} {
		if cmd, _, err := rootCmd.Find([]string{name}); err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("%s command not registered: cmd=%v err=%v", name, cmd, err)
		}
	}
}

func TestRunCommand_Flags(t *testing.T) {
	t.Parallel()

	for _, flag := range []string{"date", "dry-run"} {
		if runCmd.Flags().Lookup(flag) == nil {
			t.Fatalf("run command missing --%s", flag)
		}
	}
	if workerCmd.Flags().Lookup("run-now") == nil {
		t.Fatal("worker command missing --run-now")
	}
}

func TestCommandUsesStructuredLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "run", args: []string{"run"}, want: true},
		{name: "worker", args: []string{"worker"}, want: true},
		{name: "config-check", args: []string{"config-check"}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cmd, _, err := rootCmd.Find(tc.args)
			if err != nil {
				t.Fatalf("Find(%v) error = %v", tc.args, err)
			}
			if cmd == nil {
				t.Fatalf("Find(%v) returned nil command", tc.args)
			}

			if got := commandUsesStructuredLogging(cmd); got != tc.want {
				t.Fatalf("commandUsesStructuredLogging(%q) = %v, want %v", cmd.CommandPath(), got, tc.want)
			}
		})
	}

	if commandUsesStructuredLogging(nil) {
		t.Fatal("commandUsesStructuredLogging(nil) = true")
	}
}
