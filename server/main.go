package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"whr-ladder/server/store"
	"whr-ladder/server/whr"
)

//
// ===== pretty printing =====
//

var useColor bool

const (
	colReset = "\033[0m"
	colBold  = "\033[1m"
	colDim   = "\033[2m"
	colGreen = "\033[32m"
	colRed   = "\033[31m"
	colCyan  = "\033[36m"
)

func c(code, s string) string {
	if !useColor {
		return s
	}
	return code + s + colReset
}
func bold(s string) string { return c(colBold, s) }
func dim(s string) string  { return c(colDim, s) }
func good(s string) string { return c(colGreen, s) }
func bad(s string) string  { return c(colRed, s) }
func cyan(s string) string { return c(colCyan, s) }

func section(title string) { fmt.Printf("\n%s %s %s\n", dim("──"), bold(title), dim("──")) }

// printLeaderboard dumps the current standings, strongest first.
func printLeaderboard(base *whr.Base) {
	section("leaderboard")
	ratings := base.OrderedRatings(true)
	for i := len(ratings) - 1; i >= 0; i-- {
		pr := ratings[i]
		elo := pr.Elos[0]
		tag := good
		if elo < 0 {
			tag = bad
		}
		fmt.Printf("%3d. %s %s\n", len(ratings)-i, cyan(pr.Name), tag(fmt.Sprintf("%+.0f", elo)))
	}
}

//
// ===== bootstrap =====
//

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func atofDef(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(strings.ToLower(getenv("LOG_LEVEL", "info"))); err == nil {
		log.SetLevel(lvl)
	}

	useColor = (os.Getenv("NO_COLOR") == "") && (strings.TrimSpace(os.Getenv("USE_COLOR")) != "0")

	cfg := whr.Config{
		W2:      atofDef(os.Getenv("WHR_W2"), 300.0),
		Uncased: asBool(os.Getenv("WHR_UNCASED")),
		Debug:   asBool(os.Getenv("WHR_DEBUG")),
	}

	var db *store.DB
	if dsn := getenv("DATABASE_URL", ""); dsn != "" {
		p, err := store.Open(dsn)
		if err != nil {
			log.WithError(err).Warn("db disabled (open failed)")
		} else {
			db = p
			defer db.Close(context.Background())
			if asBool(os.Getenv("AUTO_MIGRATE")) {
				if err := store.Migrate(context.Background(), db); err != nil {
					log.WithError(err).Warn("migrate failed, continuing without db")
					db = nil
				}
			}
		}
	}

	base := whr.NewBase(cfg)
	if db != nil && asBool(os.Getenv("WHR_RESTORE")) {
		restored, err := db.LoadBase(context.Background())
		if err != nil {
			log.WithError(err).Warn("restore failed, starting empty")
		} else {
			base = restored
			log.WithField("games", len(base.Games())).Info("restored base from db")
		}
	}

	if path := getenv("WHR_GAMES_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.WithError(err).Fatal("read games file")
		}
		var records []string
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				records = append(records, line)
			}
		}
		if err := base.LoadGames(records, getenv("WHR_SEPARATOR", ";")); err != nil {
			log.WithError(err).Fatal("load games")
		}
		log.WithField("games", len(records)).Info("loaded game records")

		limit := time.Duration(atoiDef(os.Getenv("WHR_TIME_LIMIT_SECONDS"), 0)) * time.Second
		precision := atofDef(os.Getenv("WHR_PRECISION"), 1e-3)
		batch := atoiDef(os.Getenv("WHR_BATCH_SIZE"), 10)
		n, converged, err := base.AutoIterate(limit, precision, batch)
		if err != nil {
			log.WithError(err).Fatal("iteration diverged")
		}
		log.WithFields(logrus.Fields{"iterations": n, "converged": converged}).Info("auto-iterate done")
		printLeaderboard(base)

		if db != nil && asBool(os.Getenv("WHR_SAVE")) {
			if err := db.SaveBase(context.Background(), base); err != nil {
				log.WithError(err).Fatal("save base")
			}
			log.Info("saved base to db")
		}
	}

	port := getenv("PORT", "8080")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      Router(base, db),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
