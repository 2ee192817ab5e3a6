package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cetu/chainmap"
)

// Config represents the demo configuration structure
type Config struct {
	Entries int  `default:"1000" split_words:"true"`
	Debug   bool `default:"false"`
}

// loadConfig loads the configuration using environment variables and an optional .env file
func loadConfig() (*Config, error) {
	// Load a .env file if it exists
	_ = godotenv.Overload()

	config := new(Config)
	if err := envconfig.Process("demo", config); err != nil {
		return nil, err
	}
	return config, nil
}

func main() {
	// Set up zerolog to use pretty printing
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out: os.Stderr,
	})

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load the configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// A map with int as both key and value
	intMap := chainmap.New[int, int]()
	intMap.Store(1, 2)
	if v, ok := intMap.Load(1); ok {
		log.Info().Int("value", v).Msg("key 1 found")
	} else {
		log.Info().Msg("key 1 not found")
	}

	// Look up a key that was never inserted
	if _, ok := intMap.Load(3); !ok {
		log.Info().Msg("key 3 not found")
	}

	// Erase a key and look it up again
	intMap.Delete(1)
	if _, ok := intMap.Load(1); !ok {
		log.Info().Msg("key 1 not found after delete")
	}

	// A map with string keys and float64 values
	stringMap := chainmap.New[string, float64]()
	stringMap.Store("pi", 3.14159)
	stringMap.Store("e", 2.71828)
	if v, ok := stringMap.Load("pi"); ok {
		log.Info().Float64("pi", v).Msg("constant found")
	}
	if v, ok := stringMap.Load("e"); ok {
		log.Info().Float64("e", v).Msg("constant found")
	}
	stringMap.Delete("pi")
	if _, ok := stringMap.Load("pi"); !ok {
		log.Info().Msg("key 'pi' not found after delete")
	}

	// Bulk insertion to showcase automatic growth
	bulk := chainmap.New[int, int]()
	for i := 0; i < cfg.Entries; i++ {
		bulk.Store(i, i*i)
	}
	log.Info().Int("entries", bulk.Size()).Msg("bulk map populated")
	for i := 0; i < cfg.Entries; i++ {
		v, ok := bulk.Load(i)
		if !ok || v != i*i {
			log.Fatal().Int("key", i).Msg("bulk map lost an entry")
		}
	}
	log.Debug().Int("entries", cfg.Entries).Msg("all bulk entries verified")

	// Value semantics: deep copy and ownership transfer
	snapshot := bulk.Clone()
	bulk.Delete(0)
	if _, ok := snapshot.Load(0); ok {
		log.Info().Msg("snapshot unaffected by mutating the original")
	}

	var moved chainmap.Map[int, int]
	moved.MoveFrom(bulk)
	log.Info().
		Int("moved_size", moved.Size()).
		Int("source_size", bulk.Size()).
		Msg("table ownership transferred")
}
