package bootstrap

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/target/lms-session/config"
	"github.com/target/lms-session/internal/adapters/backend"
	"github.com/target/lms-session/internal/adapters/devauth"
	"github.com/target/lms-session/internal/data"
	"github.com/target/lms-session/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func devAuth() config.DevAuthConfig {
	return config.DevAuthConfig{
		UserID:    "1",
		Email:     "dev@example.com",
		FirstName: "Dev",
		LastName:  "User",
		Roles:     []string{"student"},
	}
}

func TestBuildExchanger(t *testing.T) {
	t.Run("mock mode uses dev backend", func(t *testing.T) {
		ex, err := BuildExchanger(AuthConfig{
			Auth:         config.AuthConfig{Mode: config.AuthModeMock, DevAuth: devAuth()},
			TimeProvider: data.NewFixedTimeProvider(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
			Logger:       discardLogger(),
		})
		if err != nil {
			t.Fatalf("BuildExchanger() error = %v", err)
		}
		if _, ok := ex.(*devauth.Backend); !ok {
			t.Fatalf("BuildExchanger() = %T, want *devauth.Backend", ex)
		}
	})

	t.Run("backend mode uses http client", func(t *testing.T) {
		ex, err := BuildExchanger(AuthConfig{
			Auth: config.AuthConfig{
				Mode:    config.AuthModeBackend,
				Backend: config.BackendConfig{URL: "https://lms.example.com/api/auth"},
			},
			Logger: discardLogger(),
		})
		if err != nil {
			t.Fatalf("BuildExchanger() error = %v", err)
		}
		if _, ok := ex.(*backend.Client); !ok {
			t.Fatalf("BuildExchanger() = %T, want *backend.Client", ex)
		}
	})

	tests := []struct {
		name string
		auth config.AuthConfig
	}{
		{
			name: "backend mode without url",
			auth: config.AuthConfig{Mode: config.AuthModeBackend},
		},
		{
			name: "backend mode with bad error expression",
			auth: config.AuthConfig{
				Mode: config.AuthModeBackend,
				Backend: config.BackendConfig{
					URL:              "https://lms.example.com",
					ErrorMessageExpr: "message ||",
				},
			},
		},
		{
			name: "mock mode without email",
			auth: config.AuthConfig{Mode: config.AuthModeMock, DevAuth: config.DevAuthConfig{UserID: "1"}},
		},
		{
			name: "unknown mode",
			auth: config.AuthConfig{Mode: "ldap"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildExchanger(AuthConfig{Auth: tt.auth, Logger: discardLogger()}); err == nil {
				t.Fatal("BuildExchanger() error = nil, want error")
			}
		})
	}
}

func TestBuildProviders(t *testing.T) {
	tests := []struct {
		name string
		auth config.AuthConfig
		want []string
	}{
		{
			name: "backend mode without oauth",
			auth: config.AuthConfig{Mode: config.AuthModeBackend},
			want: nil,
		},
		{
			name: "partial oauth config is ignored",
			auth: config.AuthConfig{
				Mode:  config.AuthModeBackend,
				OAuth: config.OAuthConfig{Provider: "google", ClientID: "client-id"},
			},
			want: nil,
		},
		{
			name: "mock mode adds dev provider",
			auth: config.AuthConfig{Mode: config.AuthModeMock, DevAuth: devAuth()},
			want: []string{devauth.ProviderName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := providerNames(BuildProviders(AuthConfig{Auth: tt.auth, Logger: discardLogger()}))
			if len(got) != len(tt.want) {
				t.Fatalf("BuildProviders() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("BuildProviders() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestBuildAuthServiceReturnsNilWithoutProviders(t *testing.T) {
	if svc := BuildAuthService(nil, nil, discardLogger()); svc != nil {
		t.Fatalf("BuildAuthService() = %v, want nil", svc)
	}
}

func providerNames(providers []ports.AuthProvider) []string {
	var names []string
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}
