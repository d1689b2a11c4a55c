package main

import (
	"context"
	"net/http"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"clipbot/api"
	"clipbot/bot"
	"clipbot/config"
	"clipbot/cut"
	"clipbot/imgur"
	"clipbot/logging"
	"clipbot/reddit"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		base := logging.Base()
		base.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Configure(logging.Config{Level: cfg.LogLevel})
	log := logging.WithComponent("main")

	// 2. Verify the external tools before accepting any work
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		log.Fatal().Str("bin", cfg.FFBin).Msg("transcoder binary not found in PATH")
	}
	if _, err := exec.LookPath(cfg.FFProbeBin); err != nil {
		log.Fatal().Str("bin", cfg.FFProbeBin).Msg("probe binary not found in PATH")
	}
	extraArgs, err := cut.SplitExtraArgs(cfg.FFExtraArgs)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid FF_EXTRA_ARGS")
	}

	// 3. Build engines and the collaborator clients
	runner := cut.ExecRunner{}
	probe := &cut.Probe{Bin: cfg.FFProbeBin, Runner: runner}
	engines := cut.Engines{
		GIF:   cut.GIFCutter{},
		Video: &cut.VideoCutter{Bin: cfg.FFBin, Runner: runner, Probe: probe, ExtraArgs: extraArgs},
	}

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	inbox := reddit.NewClient(reddit.Credentials{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Username:     cfg.RedditUsername,
		Password:     cfg.RedditPassword,
		UserAgent:    cfg.UserAgent,
	}, httpClient, logging.WithComponent("reddit"))
	hoster := imgur.NewClient(cfg.ImgurClientID, cfg.ImgurAccessToken, httpClient)

	throttle := &bot.Throttle{
		IdleCPU:  cfg.ThrottleCPU,
		FreeMem:  cfg.ThrottleFreeMem,
		FreeDisk: cfg.ThrottleFreeDisk,
		Log:      logging.WithComponent("throttle"),
	}

	// 4. Controller and the three pipeline stages
	controller := bot.NewController(cfg, inbox, hoster, engines, throttle, httpClient)
	scheduler := bot.NewScheduler(logging.WithComponent("scheduler"),
		bot.Stage{Name: "fetch", Interval: cfg.FetchInterval, Run: controller.Fetch},
		bot.Stage{Name: "work", Interval: cfg.WorkInterval, SleepFirst: true, Run: controller.Work},
		bot.Stage{Name: "upload", Interval: cfg.UploadInterval, SleepFirst: true, Run: controller.UploadAndAnswer},
	)

	// 5. Status API server
	router := api.SetupRouter(controller, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("status API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("status API failed")
		}
	}()

	// 6. Wait for interrupt, then drain
	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down")

	controller.Close()
	scheduler.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("status API forced to shut down")
	}
	log.Info().Msg("bye")
}
