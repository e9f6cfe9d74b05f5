// Package detect asks an image-labeling service which objects a photo shows.
package detect

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/dharsanguruparan/photosearch/internal/label"
)

const (
	// MinConfidence is the lowest confidence (percent) a detected label needs.
	MinConfidence float32 = 70
	// MaxLabels caps how many detected labels a photo receives.
	MaxLabels = 10
)

// API is the subset of the Rekognition client used here.
type API interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, opts ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Rekognition returns confidence-filtered labels for objects already stored
// in S3-compatible storage.
type Rekognition struct {
	api API
}

// NewRekognition wraps a Rekognition client.
func NewRekognition(api API) *Rekognition {
	return &Rekognition{api: api}
}

// NewRekognitionFromConfig builds the client from an AWS config.
func NewRekognitionFromConfig(cfg aws.Config) *Rekognition {
	return NewRekognition(rekognition.NewFromConfig(cfg))
}

// Labels returns lowercase label names in the service's confidence order,
// dropping anything below MinConfidence and truncating to MaxLabels.
func (r *Rekognition) Labels(ctx context.Context, bucket, key string) ([]string, error) {
	out, err := r.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image: &types.Image{
			S3Object: &types.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
		MaxLabels:     aws.Int32(MaxLabels),
		MinConfidence: aws.Float32(MinConfidence),
	})
	if err != nil {
		return nil, fmt.Errorf("detect labels for %s/%s: %w", bucket, key, err)
	}
	labels := make([]string, 0, len(out.Labels))
	for _, l := range out.Labels {
		if len(labels) == MaxLabels {
			break
		}
		if aws.ToFloat32(l.Confidence) < MinConfidence {
			continue
		}
		if name := label.Normalize(aws.ToString(l.Name)); name != "" {
			labels = append(labels, name)
		}
	}
	return labels, nil
}
