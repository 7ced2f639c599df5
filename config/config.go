// Package config loads .env files and reads typed values from the environment.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv 读取 .env（可选）；已存在的环境变量不会被覆盖
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			slog.Warn("load env file", "file", f, "err", err)
		}
	}
}

func Get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func Int(k string, def int) int {
	n, err := strconv.Atoi(Get(k, ""))
	if err != nil {
		return def
	}
	return n
}

// Seconds reads an integer number of seconds, e.g. SESSION_TTL_SECONDS=86400.
func Seconds(k string, def time.Duration) time.Duration {
	n := Int(k, -1)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// List splits a comma separated value, dropping blanks.
func List(k string, def ...string) []string {
	raw := os.Getenv(k)
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
