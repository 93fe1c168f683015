// Command tmdb-mock serves the two TMDB endpoints movie-shelf consumes from a
// local JSON file, for development without an API key.
package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-tmdb.json", "path to mock data file")
		apiKey  = flag.String("api-key", "", "reject requests whose api_key differs (empty accepts any)")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", "tmdb-mock").Logger()

	file, err := os.ReadFile(*data)
	if err != nil {
		logger.Fatal().Err(err).Msg("read mock data")
	}
	movies, err := loadMovies(file)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse mock data")
	}

	requestLogger := zerolog.Nop()
	if *verbose {
		requestLogger = logger
	}

	addr := ":" + *port
	logger.Info().Str("addr", addr).Int("movies", len(movies)).Msg("mock tmdb listening")
	if err := http.ListenAndServe(addr, newRouter(movies, *apiKey, requestLogger)); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
