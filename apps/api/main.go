package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	echoapi "github.com/ElabeidiTech/LearnHub-sub000/apps/api/echo"
	"github.com/ElabeidiTech/LearnHub-sub000/apps/container"
	"github.com/ElabeidiTech/LearnHub-sub000/core"
	schedsvc "github.com/ElabeidiTech/LearnHub-sub000/services/scheduler"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	c, err := container.New(context.Background(), conf, "API", true)
	if err != nil {
		log.Fatalf("setting up dependencies: %v", err)
	}
	defer c.Close()
	logger := c.Logger

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("db").Set(conf.Database.Engine)
	expvar.NewString("storage").Set(conf.Storage.Backend)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduler

	sched := schedsvc.New(logger)
	if err = sched.ScheduleAttemptSweep(conf.Quiz.SweepSchedule, conf.Quiz.SweepTimeout, c.Quizzes); err != nil {
		logger.Fatal(fmt.Sprintf("scheduler error: %v", err), err)
	}
	sched.Start()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Validate:      c.Validate,
		Translator:    c.Translator,
		UserSvc:       c.Users,
		CourseSvc:     c.Courses,
		AssignmentSvc: c.Assignments,
		QuizSvc:       c.Quizzes,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		sched.Stop(ctx)

		// asking listener to shut down and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
