package repository

import "github.com/okian/skillboard/pkg/logger"

// Option applies a configuration option to the GormStore.
type Option func(*GormStore)

// WithLogger sets the logger used for migrations and commit summaries.
func WithLogger(l logger.Logger) Option {
	return func(s *GormStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBatchSize sets the number of rows per INSERT when writing ratings and history.
func WithBatchSize(n int) Option {
	return func(s *GormStore) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithAutoMigrate controls whether Open migrates the schema.
func WithAutoMigrate(enabled bool) Option {
	return func(s *GormStore) {
		s.autoMigrate = enabled
	}
}
