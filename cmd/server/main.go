package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"skyhaul/internal/api"
	"skyhaul/internal/game"
	"skyhaul/internal/models"
	"skyhaul/internal/production"
	"skyhaul/internal/telemetry"
	"skyhaul/internal/tuning"
)

var (
	flagConfig    string
	flagPort      string
	flagDataDir   string
	flagHeadless  int
	flagAutostart bool
)

func main() {
	root := &cobra.Command{
		Use:   "skyhaul",
		Short: "Closed-economy hauling simulation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", "data/tuning.yaml", "tuning file path")
	root.Flags().StringVarP(&flagPort, "port", "p", "", "listen port (overrides PORT env)")
	root.Flags().StringVar(&flagDataDir, "data-dir", "data", "directory for telemetry output")
	root.Flags().IntVar(&flagHeadless, "headless", 0, "run N ticks without serving, print state, exit")
	root.Flags().BoolVar(&flagAutostart, "autostart", false, "start the background ticker on boot")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	tun, err := tuning.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	engine := buildEngine(tun, logger)

	if flagHeadless > 0 {
		for i := 0; i < flagHeadless; i++ {
			engine.Tick(engine.TickSeconds())
		}
		st := engine.State()
		fmt.Printf("ticks=%d balance=%.2f earned=%.2f routes=%d\n",
			st.Tick, st.Balance, st.LifetimeEarned, len(st.Routes))
		return nil
	}

	hub := api.NewHub(logger)
	go hub.Run()

	recorder, err := telemetry.NewRecorder(flagDataDir+"/telemetry.db", logger)
	if err != nil {
		return fmt.Errorf("open telemetry: %w", err)
	}
	defer recorder.Close()

	eventLog, err := telemetry.NewEventLog(flagDataDir+"/events", "events")
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer eventLog.Close()

	engine.SetEventSink(func(events []models.Event) {
		hub.BroadcastEvents(events)
		recorder.Record(events)
		if err := eventLog.Append(events); err != nil {
			logger.Warn("event log append failed", "err", err)
		}
	})

	if flagAutostart {
		engine.StartSim(1)
	}

	handler := api.New(engine, hub)
	port := listenPort()
	logger.Info("server listening", "port", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
	return nil
}

func buildEngine(tun tuning.Tuning, logger *slog.Logger) *game.Engine {
	cfg := game.Config{
		TickSeconds:        tun.Sim.TickSeconds,
		GatherTime:         tun.Sim.GatherTime,
		DemandWindow:       tun.Demand.WindowSeconds,
		ReducedFactor:      tun.Demand.ReducedFactor,
		EscalationInterval: tun.Demand.EscalationInterval,
		EscalationFactor:   tun.Demand.EscalationFactor,
		StartingBalance:    tun.Balance.StartingBalance,
		Hub:                tun.Hub.Vec3(),
		Costs: game.Costs{
			Carrier:             tun.Balance.CarrierCost,
			RouteCapacity:       tun.Balance.RouteCapacityCost,
			RouteSpeed:          tun.Balance.RouteSpeedCost,
			RouteSpeedStep:      tun.Balance.RouteSpeedStep,
			StorageCapacity:     tun.Balance.StorageCapacityCost,
			StorageCapacityStep: tun.Balance.StorageCapacityStep,
			RecipeTier:          tun.Balance.RecipeTierCost,
			RecipeUnlock:        tun.Balance.RecipeUnlockCost,
		},
	}
	engine := game.NewEngine(cfg, logger)

	for _, c := range tun.Commodities {
		engine.RegisterCommodity(models.CommodityID(c.Key), c.Capacity, c.DeliveryValue, c.DemandTarget)
	}
	for _, r := range tun.Recipes {
		ings := make([]models.Ingredient, 0, len(r.Ingredients))
		for _, ing := range r.Ingredients {
			ings = append(ings, models.Ingredient{
				Commodity: models.CommodityID(ing.Commodity),
				Quantity:  ing.Quantity,
			})
		}
		if err := engine.Scheduler().AddRecipe(&production.Recipe{
			ID:                 models.RecipeID(r.Key),
			Name:               r.Name,
			Ingredients:        ings,
			BaseTime:           r.BaseTime,
			BaseValue:          r.BaseValue,
			IngredientDiscount: r.IngredientDiscount,
			TimeDiscount:       r.TimeDiscount,
			ValueBonus:         r.ValueBonus,
			Unlocked:           r.Unlocked,
		}); err != nil {
			logger.Warn("skipping recipe", "recipe", r.Key, "err", err)
		}
	}
	for _, rt := range tun.Routes {
		if _, err := engine.AddRoute(models.Route{
			Name:        rt.Name,
			Producer:    rt.Producer.Vec3(),
			BaseSpeed:   rt.BaseSpeed,
			ArcAltitude: rt.ArcAltitude,
			Capacity:    rt.Capacity,
			Commodity:   models.CommodityID(rt.Commodity),
		}); err != nil {
			logger.Warn("skipping route", "route", rt.Name, "err", err)
		}
	}
	if tun.Balance.StartingCarriers > 0 {
		if err := engine.Pool().AddToPool(tun.Balance.StartingCarriers); err != nil {
			logger.Warn("seed fleet failed", "err", err)
		}
	}
	return engine
}

func listenPort() string {
	if flagPort != "" {
		return flagPort
	}
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "4000"
}
