package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	basePath := flag.String("dir", filepath.Join(".", "internal", "adapters", "repository", "postgres", "migrations"), "Migrations directory")
	all := flag.Bool("all", false, "Apply every *.up.sql file in order")
	flag.Parse()

	if !*all && flag.NArg() < 1 {
		logrus.Fatal("a migration name is required (or pass -all).")
	}

	db, err := sql.Open("postgres", dbConnString())
	if err != nil {
		logrus.Fatal(err)
	}
	defer db.Close()

	var files []string
	if *all {
		files, err = upMigrations(*basePath)
	} else {
		var name string
		name, err = migrationFilePath(*basePath, flag.Arg(0))
		files = []string{name}
	}
	if err != nil {
		logrus.Fatal(err)
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(*basePath, name))
		if err != nil {
			logrus.Fatal(err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			logrus.Fatalf("Failed to execute SQL file %s: %v", name, err)
		}
		logrus.WithField("file", name).Info("Migration file executed successfully.")
	}
}

func upMigrations(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func migrationFilePath(basePath string, migrationName string) (string, error) {
	patternStr := fmt.Sprintf(`^.*%s\.sql`, regexp.QuoteMeta(migrationName))

	regex, err := regexp.Compile(patternStr)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	files, _ := os.ReadDir(basePath)
	for _, f := range files {
		if f.IsDir() {
			continue
		}

		if regex.MatchString(f.Name()) {
			return f.Name(), nil
		}
	}

	return "", fmt.Errorf("migration file not found")
}

func dbConnString() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return config.Postgres{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     os.Getenv("POSTGRES_PORT"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		DB:       os.Getenv("POSTGRES_DB"),
	}.DSN()
}
