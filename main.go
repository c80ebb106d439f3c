// main.go
//
// Process entry point: config, logging, database, engines, HTTP server.
// Wiring order is leaf-first: store -> rating service -> arena manager ->
// matchmaking engine -> websocket handler -> router.

package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quorbit/quoridor-server/internal/arena"
	"github.com/quorbit/quoridor-server/internal/httpserver"
	"github.com/quorbit/quoridor-server/internal/matchmaking"
	"github.com/quorbit/quoridor-server/internal/proto"
	"github.com/quorbit/quoridor-server/internal/rating"
	"github.com/quorbit/quoridor-server/internal/store"
	"github.com/quorbit/quoridor-server/internal/ws"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := openDB(getEnv("DATABASE_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	st := store.NewSQLStore(db)
	ratings := rating.NewService(st)
	rooms := arena.NewManager(ratings)

	queue := matchmaking.NewEngine(func(a, b proto.Client, mode proto.Mode) {
		a.Send(proto.Envelope{Type: proto.EventMatchFound, Data: proto.MatchFound{OpponentName: b.DisplayName()}})
		b.Send(proto.Envelope{Type: proto.EventMatchFound, Data: proto.MatchFound{OpponentName: a.DisplayName()}})
		rooms.CreateRoom(a, b, mode)
	})
	defer queue.Stop()

	wsh := ws.NewHandler(rooms, queue, st)
	srv := httpserver.New(st, wsh)

	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Msg("starting quoridor-server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
