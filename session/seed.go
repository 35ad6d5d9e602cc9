package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/requests"
)

// Seed applies create requests to the selected root. Directories are created
// first with `mkdir -p` semantics, then files (with their missing ancestors).
// A file is filled from the first of its sources, in priority order, that can
// be read. Failed requests are logged and skipped; their errors are joined.
func (s *Session) Seed(ctx context.Context, seed *requests.Seed) error {
	logger := s.logger("Session.Seed")

	if _, err := s.Cwd(); err != nil {
		return err
	}

	var errs []error
	for _, req := range seed.Dirs {
		if _, err := s.MkdirAll(rootPath(req.Path)); err != nil {
			logger.Error().Err(err).Str("path", req.Path).Str("uuid", req.UUID).Msg("Failed to create directory")
			errs = append(errs, fmt.Errorf("%s: %w", req.Path, err))
		}
	}
	for _, req := range seed.Files {
		if err := s.seedFile(ctx, req); err != nil {
			logger.Error().Err(err).Str("path", req.Path).Str("uuid", req.UUID).Msg("Failed to create file")
			errs = append(errs, fmt.Errorf("%s: %w", req.Path, err))
		}
	}

	logger.Info().Int("dirs", len(seed.Dirs)).Int("files", len(seed.Files)).Int("failed", len(errs)).Msg("Seed applied")
	return errors.Join(errs...)
}

func (s *Session) seedFile(ctx context.Context, req *kfs.FileCreateRequest) error {
	logger := s.logger("Session.seedFile")

	p := rootPath(req.Path)
	dir, _ := splitParent(p)
	if _, err := s.MkdirAll(dir); err != nil {
		return err
	}
	if _, err := s.Mkfile(p); err != nil {
		return err
	}
	if len(req.Sources) == 0 {
		return nil
	}

	var errs []error
	for _, src := range req.Sources {
		n, err := s.CopyTo(ctx, p, src)
		if err == nil {
			logger.Trace().Str("path", p).Int("priority", src.Priority).Int("size", n).Msg("Filled from source")
			return nil
		}
		if !errors.Is(err, ErrSourceUnavailable) {
			// store errors are not going to improve with another source
			return err
		}
		logger.Debug().Err(err).Str("path", p).Int("priority", src.Priority).Msg("Source failed, trying next")
		errs = append(errs, err)
	}
	return fmt.Errorf("no readable source: %w", errors.Join(errs...))
}

// rootPath anchors seed paths at the selected root
func rootPath(p string) string {
	return "/" + p
}
