package ratetable

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/covera/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

//go:embed data/tariffs.yml
var embeddedBook []byte

// Holder serves the current Book. A book read from RATE_TABLES_DIR is
// watched and swapped atomically when a valid revision is written.
type Holder struct {
	current atomic.Value // holds Book
}

// Parse decodes and validates a YAML rate book.
func Parse(data []byte) (Book, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Book{}, fmt.Errorf("%w: %v", ErrInvalidBook, err)
	}
	return decode(v)
}

// Default returns the book compiled into the binary.
func Default() (Book, error) {
	return Parse(embeddedBook)
}

func decode(v *viper.Viper) (Book, error) {
	var book Book
	if err := v.Unmarshal(&book); err != nil {
		return Book{}, fmt.Errorf("%w: %v", ErrInvalidBook, err)
	}
	book.applyDefaults()
	if err := Validate(book); err != nil {
		return Book{}, err
	}
	return book, nil
}

// NewStaticHolder serves a fixed book.
func NewStaticHolder(book Book) *Holder {
	h := &Holder{}
	h.current.Store(book)
	return h
}

func NewHolder(cfg config.Config, log *zap.Logger) (*Holder, error) {
	if cfg.RateTablesDir == "" {
		book, err := Default()
		if err != nil {
			return nil, err
		}
		log.Info("rate book loaded", zap.String("source", "embedded"), zap.String("version", book.Version))
		return NewStaticHolder(book), nil
	}

	v := viper.New()
	v.SetConfigName("tariffs")
	v.SetConfigType("yml")
	v.AddConfigPath(cfg.RateTablesDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// no override file, use the compiled-in book
		defaults, err := Default()
		if err != nil {
			return nil, err
		}
		log.Warn("rate book override not found, using embedded book", zap.String("dir", cfg.RateTablesDir))
		return NewStaticHolder(defaults), nil
	}
	book, err := decode(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticHolder(book)
	log.Info("rate book loaded", zap.String("source", v.ConfigFileUsed()), zap.String("version", book.Version))

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decode(v)
		if err != nil {
			log.Warn("rate book reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("rate book reloaded", zap.String("file", e.Name), zap.String("version", updated.Version))
	})

	return holder, nil
}

func (h *Holder) Get() Book {
	return h.current.Load().(Book)
}
