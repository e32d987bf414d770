package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/playerchat/internal/logger"
	"gopkg.in/yaml.v3"
)

// loadEnv читает .env только вне production (в контейнере/prod конфиг только из env).
func loadEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		path := dir + "/.env"
		f, err := os.Open(path)
		if err == nil {
			loadEnvFrom(f)
			f.Close()
			return
		}
		parent := strings.TrimSuffix(dir, "/")
		if idx := strings.LastIndex(parent, "/"); idx <= 0 {
			return
		} else {
			dir = parent[:idx]
			if dir == "" {
				dir = "/"
			}
		}
	}
}

func loadEnvFrom(f *os.File) {
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// Config содержит настройки клиента.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// Сервер
	APIBaseURL string `yaml:"api_base_url"`
	WSURL      string `yaml:"ws_url"`

	// Сессионная кука (имя — из YAML, значение — только из env)
	SessionCookieName string `yaml:"session_cookie_name"`
	SessionCookie     string `yaml:"-"`

	// HTTP
	HTTPTimeout time.Duration `yaml:"-"`

	// Поведение чата
	TypingShowWindow time.Duration `yaml:"-"` // сколько держать индикатор "печатает"
	TypingIdleStop   time.Duration `yaml:"-"` // пауза ввода до stop_typing
	ConfirmTimeout   time.Duration `yaml:"-"` // ожидание эха для отправленного сообщения
	PreviewMaxLen    int           `yaml:"preview_max_len"`

	// WebSocket
	WSWriteTimeout   int `yaml:"ws_write_timeout"`
	WSPongTimeout    int `yaml:"ws_pong_timeout"`
	WSMaxMessageSize int `yaml:"ws_max_message_size"`
	WSSendBufferSize int `yaml:"ws_send_buffer_size"`

	// Логирование
	LogLevel string `yaml:"log_level"`
}

// yamlConfig — промежуточная структура для парсинга YAML (длительности в мс/сек).
type yamlConfig struct {
	APIBaseURL        string `yaml:"api_base_url"`
	WSURL             string `yaml:"ws_url"`
	SessionCookieName string `yaml:"session_cookie_name"`
	HTTPTimeoutSec    int    `yaml:"http_timeout"`
	TypingShowMS      int    `yaml:"typing_show_ms"`
	TypingIdleMS      int    `yaml:"typing_idle_ms"`
	ConfirmTimeoutSec int    `yaml:"confirm_timeout"`
	PreviewMaxLen     int    `yaml:"preview_max_len"`
	WSWriteTimeout    int    `yaml:"ws_write_timeout"`
	WSPongTimeout     int    `yaml:"ws_pong_timeout"`
	WSMaxMessageSize  int    `yaml:"ws_max_message_size"`
	WSSendBufferSize  int    `yaml:"ws_send_buffer_size"`
	LogLevel          string `yaml:"log_level"`
}

// Load загружает конфигурацию.
// Сначала подгружаются переменные из .env (если есть), затем YAML и env (env имеет приоритет).
func Load() *Config {
	loadEnv()
	// Значения по умолчанию
	yc := yamlConfig{
		APIBaseURL:        "http://localhost:8080",
		WSURL:             "ws://localhost:8080/ws",
		SessionCookieName: "session",
		HTTPTimeoutSec:    10,
		TypingShowMS:      3000,
		TypingIdleMS:      1000,
		ConfirmTimeoutSec: 30,
		PreviewMaxLen:     50,
		WSWriteTimeout:    10,
		WSPongTimeout:     60,
		WSMaxMessageSize:  4096,
		WSSendBufferSize:  64,
		LogLevel:          "info",
	}

	// Загрузка конфигурации: CONFIG_PATH → config/client.yaml
	paths := []string{os.Getenv("CONFIG_PATH"), "config/client.yaml"}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	cfg := &Config{
		APIBaseURL:        strings.TrimSuffix(envStr("API_BASE_URL", yc.APIBaseURL), "/"),
		WSURL:             envStr("WS_URL", yc.WSURL),
		SessionCookieName: envStr("SESSION_COOKIE_NAME", yc.SessionCookieName),
		SessionCookie:     os.Getenv("SESSION_COOKIE"),
		HTTPTimeout:       time.Duration(envInt("HTTP_TIMEOUT", yc.HTTPTimeoutSec)) * time.Second,
		TypingShowWindow:  time.Duration(envInt("TYPING_SHOW_MS", yc.TypingShowMS)) * time.Millisecond,
		TypingIdleStop:    time.Duration(envInt("TYPING_IDLE_MS", yc.TypingIdleMS)) * time.Millisecond,
		ConfirmTimeout:    time.Duration(envInt("CONFIRM_TIMEOUT", yc.ConfirmTimeoutSec)) * time.Second,
		PreviewMaxLen:     envInt("PREVIEW_MAX_LEN", yc.PreviewMaxLen),
		WSWriteTimeout:    envInt("WS_WRITE_TIMEOUT", yc.WSWriteTimeout),
		WSPongTimeout:     envInt("WS_PONG_TIMEOUT", yc.WSPongTimeout),
		WSMaxMessageSize:  envInt("WS_MAX_MESSAGE_SIZE", yc.WSMaxMessageSize),
		WSSendBufferSize:  envInt("WS_SEND_BUFFER_SIZE", yc.WSSendBufferSize),
		LogLevel:          envStr("LOG_LEVEL", yc.LogLevel),
	}

	if cfg.PreviewMaxLen <= 0 {
		cfg.PreviewMaxLen = 50
	}
	if cfg.TypingShowWindow <= 0 {
		cfg.TypingShowWindow = 3 * time.Second
	}
	if cfg.TypingIdleStop <= 0 {
		cfg.TypingIdleStop = time.Second
	}

	return cfg
}

// envStr возвращает значение переменной окружения или fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt возвращает числовое значение переменной окружения или fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
