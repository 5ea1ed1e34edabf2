package providers

import (
	"context"
	"errors"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// ErrMidjourneyUnsupported is returned for every Midjourney request
var ErrMidjourneyUnsupported = errors.New("Midjourney integration coming soon")

// Midjourney is listed so the model picker can show it; generation is not wired yet
type Midjourney struct{}

func (Midjourney) Name() string    { return "midjourney" }
func (Midjourney) Available() bool { return false }

func (Midjourney) Generate(context.Context, generation.Request) (*domain.JobResult, error) {
	return nil, ErrMidjourneyUnsupported
}
