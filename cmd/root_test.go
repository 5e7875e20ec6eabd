package cmd

import "testing"

func TestBindFlagsSucceeds(t *testing.T) {
	if bindErr != nil {
		t.Fatalf("cfg.BindFlags failed during package init: %v", bindErr)
	}
}

func TestRootCmdRequiresTwoArgs(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"no args", nil, true},
		{"one arg", []string{"only-src"}, true},
		{"two args", []string{"src", "dst"}, false},
		{"three args", []string{"src", "dst", "extra"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := rootCmd.Args(rootCmd, tc.args)
			if tc.wantErr && err == nil {
				t.Fatalf("expected an error for args %v, got nil", tc.args)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for args %v: %v", tc.args, err)
			}
		})
	}
}
