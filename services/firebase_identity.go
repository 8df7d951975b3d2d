package services

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

// FirebaseIdentityProvider reads user records from Firebase Authentication
type FirebaseIdentityProvider struct {
	client *auth.Client
}

// NewFirebaseIdentityProvider wraps a Firebase Auth client
func NewFirebaseIdentityProvider(client *auth.Client) *FirebaseIdentityProvider {
	return &FirebaseIdentityProvider{client: client}
}

// Profile implements IdentityProvider using the admin SDK's user lookup
func (p *FirebaseIdentityProvider) Profile(ctx context.Context, uid, _ string) (*IdentityProfile, error) {
	record, err := p.client.GetUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Firebase user: %w", err)
	}
	return &IdentityProfile{
		Email:       record.Email,
		DisplayName: record.DisplayName,
		PhotoURL:    record.PhotoURL,
	}, nil
}
