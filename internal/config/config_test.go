package config

import "testing"

func TestIsProd(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{env: "production", want: true},
		{env: "prod", want: true},
		{env: "dev", want: false},
		{env: "staging", want: false},
		{env: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := (App{Env: tt.env}).IsProd(); got != tt.want {
				t.Errorf("IsProd() with env %q = %v, want %v", tt.env, got, tt.want)
			}
		})
	}
}
