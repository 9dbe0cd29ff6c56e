package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"tg-monitor-bot/internal/adapters/mtproto"
)

func main() {
	var (
		filePath   string
		stringPath string
		outPath    string
	)
	flag.StringVar(&filePath, "file", "", "путь к файлу сессии (Telethon JSON или gotd JSON)")
	flag.StringVar(&stringPath, "string", "", "строковая сессия Telethon")
	flag.StringVar(&outPath, "out", "session.json", "куда записать сессию в формате gotd")
	flag.Parse()

	var raw []byte
	switch {
	case filePath != "" && stringPath != "":
		log.Fatal().Msg("session-import: укажите только один из -file или -string")
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("session-import: не удалось прочитать файл сессии")
		}
		raw = data
	case stringPath != "":
		raw = []byte(stringPath)
	default:
		log.Fatal().Msg("session-import: нужен -file или -string")
	}

	data, converted, err := mtproto.DecodeSession(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("session-import: неподдерживаемый формат сессии")
	}

	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			log.Fatal().Err(pathErr).Str("path", outPath).Msg("session-import: ошибка файловой системы")
		}
		log.Fatal().Err(err).Msg("session-import: не удалось сохранить сессию")
	}

	if converted {
		fmt.Println("Сессия сконвертирована в формат gotd")
	}
	fmt.Printf("Сессия записана в %s (%d байт). Укажите её в MTPROTO_SESSION_FILE\n", outPath, len(data))
}
