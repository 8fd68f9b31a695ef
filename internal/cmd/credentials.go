package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tomasbasham/bucketview/internal/storage"
)

// credentialFlags are the connection flags shared by ls and show.
type credentialFlags struct {
	Anonymous       bool
	CredentialsFile string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

func (f *credentialFlags) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&f.Anonymous, "anonymous", true, "Connect without credentials (public buckets only)")
	flags.StringVar(&f.CredentialsFile, "credentials", "", "GCS service account key file")
	flags.StringVar(&f.AccessKeyID, "access-key-id", "", "S3 access key ID")
	flags.StringVar(&f.SecretAccessKey, "secret-access-key", "", "S3 secret access key")
	flags.StringVar(&f.SessionToken, "session-token", "", "S3 session token")
	flags.StringVar(&f.Region, "region", "", "S3 region (resolved from the bucket if empty)")
}

// Input turns the flags into a CredentialInput. Supplying a key file or an
// access key implies --anonymous=false unless the flag was set explicitly.
func (f *credentialFlags) Input(cmd *cobra.Command) (storage.CredentialInput, error) {
	anonymous := f.Anonymous
	if !cmd.Flags().Changed("anonymous") && (f.CredentialsFile != "" || f.AccessKeyID != "" || f.SecretAccessKey != "") {
		anonymous = false
	}

	in := storage.CredentialInput{
		Anonymous:       anonymous,
		AccessKeyID:     f.AccessKeyID,
		SecretAccessKey: f.SecretAccessKey,
		SessionToken:    f.SessionToken,
		Region:          f.Region,
	}
	if f.CredentialsFile != "" && !anonymous {
		data, err := os.ReadFile(f.CredentialsFile)
		if err != nil {
			return in, fmt.Errorf("failed to read credentials file: %w", err)
		}
		in.ServiceAccountJSON = data
	}
	return in, nil
}
