package config

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// GoogleClientOptions returns the credential options shared by Firebase, Firestore and GCS clients.
// With neither variable set the SDKs fall back to application default credentials.
func GoogleClientOptions(c *Config) ([]option.ClientOption, error) {
	if c.GoogleCredentials != "" {
		return []option.ClientOption{option.WithCredentialsFile(c.GoogleCredentials)}, nil
	}
	if encoded := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"); encoded != "" {
		jsonKey, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errors.New("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is not a valid base64 string")
		}
		return []option.ClientOption{option.WithCredentialsJSON(jsonKey)}, nil
	}
	return nil, nil
}

// InitFirebase initializes the Firebase Admin app for Firestore and ID-token verification
func InitFirebase(ctx context.Context, c *Config) (*firebase.App, error) {
	if c.FirebaseProjectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID must be set")
	}

	opts, err := GoogleClientOptions(c)
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: c.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	return app, nil
}
