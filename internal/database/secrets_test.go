package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type fakeSecretsManager struct {
	secret *string
	err    error
	asked  string
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.secret}, nil
}

func TestPortType_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    PortType
		wantErr bool
	}{
		{"int port", `5432`, 5432, false},
		{"string port", `"5433"`, 5433, false},
		{"non numeric string", `"abc"`, 0, true},
		{"bool", `true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p PortType
			err := json.Unmarshal([]byte(tt.input), &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p != tt.want {
				t.Errorf("UnmarshalJSON() = %d, want %d", p, tt.want)
			}
		})
	}
}

func TestLoadConfigFromSecret(t *testing.T) {
	client := &fakeSecretsManager{
		secret: aws.String(`{"host":"db.internal","port":"5432","username":"app","password":"pw","dbname":"showcase"}`),
	}

	cfg, err := LoadConfigFromSecret(context.Background(), client, "showcase/db")
	if err != nil {
		t.Fatalf("LoadConfigFromSecret() error = %v", err)
	}
	if client.asked != "showcase/db" {
		t.Errorf("secret id = %q", client.asked)
	}
	if cfg.Host != "db.internal" || cfg.Port != "5432" || cfg.User != "app" || cfg.Database != "showcase" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.SSLMode != "require" {
		t.Errorf("SSLMode = %q, want require", cfg.SSLMode)
	}
}

func TestLoadConfigFromSecret_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeSecretsManager
	}{
		{"fetch error", &fakeSecretsManager{err: errors.New("access denied")}},
		{"binary secret", &fakeSecretsManager{}},
		{"bad json", &fakeSecretsManager{secret: aws.String(`{`)}},
		{"missing password", &fakeSecretsManager{secret: aws.String(`{"host":"h","port":5432,"username":"u","dbname":"d"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfigFromSecret(context.Background(), tt.client, "s"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
