// Package mocks provides gomock-generated mocks of the session service ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	exchanger := mocks.NewMockCredentialExchanger(ctrl)
//	exchanger.EXPECT().RefreshAccessToken(gomock.Any(), "r1").Return(result, nil)
package mocks

// Generate mock for CredentialExchanger interface from internal/ports package.
// This creates MockCredentialExchanger with methods for all CredentialExchanger interface methods:
// LoginWithPassword, LoginWithOAuthToken, RefreshAccessToken, FetchSession
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_exchanger_mock.go github.com/target/lms-session/internal/ports CredentialExchanger

// Generate mock for TokenCodec interface from internal/ports package.
// This creates MockTokenCodec with methods for all TokenCodec interface methods:
// Encode, Decode
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_codec_mock.go github.com/target/lms-session/internal/ports TokenCodec
