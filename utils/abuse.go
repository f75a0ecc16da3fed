package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ecoguide/ecoguide/config"
)

// Per-IP throttling counters for the public auth endpoints. All checks
// fail-open when Redis is unavailable so the service keeps working without it.

func abuseKey(parts ...string) string {
	key := "abuse"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// RegistrationCooldownTry enforces a short cooldown between registration attempts per IP.
func RegistrationCooldownTry(ip string) bool {
	cfg := config.Get()
	sec := cfg.RegisterAttemptCooldownSec
	if sec <= 0 {
		return true
	}
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	ok, err := cli.SetNX(ctx, abuseKey("reg", "cooldown", ip), "1", time.Duration(sec)*time.Second).Result()
	if err != nil {
		return true
	}
	return ok
}

// RegistrationDailyLimitCheck allows up to N registrations per day per IP.
func RegistrationDailyLimitCheck(ip string) bool {
	cfg := config.Get()
	limit := cfg.RegisterMaxPerIPPerDay
	if limit <= 0 {
		return true
	}
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	n, err := cli.Get(ctx, abuseKey("reg", "day", ip, time.Now().Format("20060102"))).Int()
	if err == redis.Nil {
		n = 0
	} else if err != nil {
		return true
	}
	return n < limit
}

// RegistrationDailyIncrement increments the per-IP success counter for today.
func RegistrationDailyIncrement(ip string) {
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	key := abuseKey("reg", "day", ip, time.Now().Format("20060102"))
	if err := cli.Incr(ctx, key).Err(); err == nil {
		ttl := time.Until(time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour))
		_ = cli.Expire(ctx, key, ttl).Err()
	}
}

// LoginFailRecord increments the per-IP failed-login counter for the current
// hour and returns the running count.
func LoginFailRecord(ip string) int {
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	key := abuseKey("login", "fail", ip, time.Now().Format("2006010215"))
	n, err := cli.Incr(ctx, key).Result()
	if err != nil {
		return 0
	}
	_ = cli.Expire(ctx, key, time.Hour).Err()
	return int(n)
}

// LoginIsBanned checks temporary ban status for an IP.
func LoginIsBanned(ip string) bool {
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	exists, err := cli.Exists(ctx, abuseKey("login", "ban", ip)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// LoginBan sets a temporary ban for an IP after repeated failed logins.
func LoginBan(ip string) {
	cfg := config.Get()
	minutes := cfg.LoginTempBanMinutes
	if minutes <= 0 {
		minutes = 60
	}
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = cli.Set(ctx, abuseKey("login", "ban", ip), "1", time.Duration(minutes)*time.Minute).Err()
}
