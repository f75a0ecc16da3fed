package main

import (
	"time"

	"github.com/ecoguide/ecoguide/config"
	"github.com/ecoguide/ecoguide/models"
	"github.com/ecoguide/ecoguide/routes"
	"github.com/ecoguide/ecoguide/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.WasteItem{}, &models.Attempt{}, &models.AuditEntry{})

	// Analytics mirror is best-effort: without Mongo every event is dropped
	// and the primary flow is unaffected.
	var sink utils.AnalyticsSink = utils.DiscardSink{}
	if coll := utils.EventsCollection(); coll != nil {
		sink = utils.NewMongoSink(coll)
	} else {
		utils.Sugar.Warn("analytics store not configured, mirror events will be dropped")
	}

	r := routes.SetupRouter(db, sink)

	// Keep the leaderboard cache warm in the background (best-effort)
	utils.StartRankingWarmer(db, 5*time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
	sink.Close()
}
