package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var _ IOptions = (*S3Options)(nil)

// S3Options configures the optional archive of acknowledged location
// batches. Endpoint is host[:port]; the scheme follows UseSSL.
type S3Options struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey string `json:"secret-access-key" mapstructure:"secret-access-key"`
	UseSSL          bool   `json:"use-ssl" mapstructure:"use-ssl"`
	BucketName      string `json:"bucket-name" mapstructure:"bucket-name"`
	Region          string `json:"region" mapstructure:"region"`
}

func NewS3Options() *S3Options {
	return &S3Options{
		Endpoint:   "127.0.0.1:9000",
		BucketName: "cartrack-locations",
		Region:     "us-east-1",
	}
}

func (o *S3Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	switch {
	case o.Endpoint == "":
		errs = append(errs, fmt.Errorf("s3.endpoint is required when the archive is enabled"))
	case strings.Contains(o.Endpoint, "://"):
		errs = append(errs, fmt.Errorf("s3.endpoint %q must be host[:port] without a scheme", o.Endpoint))
	}
	if o.BucketName == "" {
		errs = append(errs, fmt.Errorf("s3.bucket-name is required when the archive is enabled"))
	}
	return errs
}

func (o *S3Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "s3.enabled", o.Enabled, "Archive every acknowledged location batch.")
	fs.StringVar(&o.Endpoint, "s3.endpoint", o.Endpoint, "Object store endpoint as host[:port], e.g. minio.local:9000.")
	fs.StringVar(&o.AccessKeyID, "s3.access-key-id", o.AccessKeyID, "Access key ID.")
	fs.StringVar(&o.SecretAccessKey, "s3.secret-access-key", o.SecretAccessKey, "Secret access key.")
	fs.BoolVar(&o.UseSSL, "s3.use-ssl", o.UseSSL, "Talk to the endpoint over HTTPS.")
	fs.StringVar(&o.BucketName, "s3.bucket-name", o.BucketName, "Bucket receiving archived batches; created when missing.")
	fs.StringVar(&o.Region, "s3.region", o.Region, "Region used when creating the bucket.")
}
