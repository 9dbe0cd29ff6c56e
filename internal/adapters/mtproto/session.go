package mtproto

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
)

// ErrUnsupportedSessionFormat возвращается для нераспознанных данных сессии.
var ErrUnsupportedSessionFormat = errors.New("mtproto: неизвестный формат сессии")

// ErrNoSession возвращается, если не задан ни файл, ни строка сессии.
var ErrNoSession = errors.New("mtproto: сессия не задана")

// OpenSession выбирает хранилище сессии. Файл в формате gotd используется
// напрямую, чтобы обновления ключей сохранялись. Строка Telethon или файл
// Telethon конвертируются и держатся в памяти.
func OpenSession(ctx context.Context, path, value string) (session.Storage, error) {
	if strings.TrimSpace(value) != "" {
		return memorySession(ctx, []byte(value))
	}
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoSession
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mtproto: чтение сессии: %w", err)
	}
	data, converted, err := DecodeSession(raw)
	if err != nil {
		return nil, err
	}
	if !converted {
		return &session.FileStorage{Path: path}, nil
	}
	storage := new(session.StorageMemory)
	if err := storage.StoreSession(ctx, data); err != nil {
		return nil, err
	}
	return storage, nil
}

func memorySession(ctx context.Context, raw []byte) (session.Storage, error) {
	data, _, err := DecodeSession(raw)
	if err != nil {
		return nil, err
	}
	storage := new(session.StorageMemory)
	if err := storage.StoreSession(ctx, data); err != nil {
		return nil, err
	}
	return storage, nil
}

type sessionDecoder func(raw []byte) ([]byte, error)

// DecodeSession приводит данные сессии к JSON-формату gotd. Второе значение
// сообщает, потребовалась ли конвертация.
func DecodeSession(raw []byte) ([]byte, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("%w: пустые данные", ErrUnsupportedSessionFormat)
	}

	var native struct {
		Version int `json:"Version"`
	}
	if err := json.Unmarshal(trimmed, &native); err == nil && native.Version != 0 {
		return bytes.Clone(trimmed), false, nil
	}

	for _, decode := range []sessionDecoder{fromTelethonAccount, fromTelethonRows, fromTelethonString} {
		if data, err := decode(trimmed); err == nil {
			return data, true, nil
		}
	}
	return nil, false, ErrUnsupportedSessionFormat
}

// fromTelethonAccount разбирает JSON аккаунта с полем extra_params.
func fromTelethonAccount(raw []byte) ([]byte, error) {
	var account struct {
		ExtraParams string `json:"extra_params"`
	}
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	if account.ExtraParams == "" {
		return nil, errors.New("нет extra_params")
	}
	return fromTelethonString([]byte(account.ExtraParams))
}

// fromTelethonRows разбирает выгрузку таблицы sessions Telethon.
func fromTelethonRows(raw []byte) ([]byte, error) {
	var rows []struct {
		DCID          int    `json:"dc_id"`
		ServerAddress string `json:"server_address"`
		Port          int    `json:"port"`
		AuthKey       string `json:"auth_key"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.AuthKey == "" || row.ServerAddress == "" || row.Port == 0 {
			continue
		}
		key, err := parseAuthKey(row.AuthKey)
		if err != nil {
			return nil, err
		}
		return encodeSession(sessionData(row.DCID, row.ServerAddress, row.Port, key))
	}
	return nil, errors.New("нет строк с ключом")
}

// fromTelethonString разбирает строковую сессию Telethon.
func fromTelethonString(raw []byte) ([]byte, error) {
	value := strings.Trim(strings.TrimSpace(string(raw)), "\"'")
	if value == "" {
		return nil, errors.New("пустая строка сессии")
	}
	data, err := session.TelethonSession(value)
	if err != nil {
		return nil, err
	}
	if data.Config.ThisDC == 0 {
		data.Config.ThisDC = data.DC
	}
	if len(data.Config.DCOptions) == 0 && data.Addr != "" {
		if host, port, ok := splitAddr(data.Addr); ok {
			data.Config.DCOptions = []tg.DCOption{{ID: data.DC, IPAddress: host, Port: port}}
		}
	}
	return encodeSession(*data)
}

func parseAuthKey(value string) (crypto.Key, error) {
	var key crypto.Key
	decoded, err := hex.DecodeString(strings.Trim(strings.TrimSpace(value), "'\""))
	if err != nil {
		return key, fmt.Errorf("auth_key: %w", err)
	}
	if len(decoded) != len(key) {
		return key, fmt.Errorf("auth_key: длина %d байт", len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

func sessionData(dc int, host string, port int, key crypto.Key) session.Data {
	id := key.WithID().ID
	return session.Data{
		Config: session.Config{
			ThisDC:    dc,
			DCOptions: []tg.DCOption{{ID: dc, IPAddress: host, Port: port}},
		},
		DC:        dc,
		Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		AuthKey:   bytes.Clone(key[:]),
		AuthKeyID: bytes.Clone(id[:]),
	}
}

func splitAddr(addr string) (string, int, bool) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false
	}
	return host, port, true
}

func encodeSession(data session.Data) ([]byte, error) {
	return json.Marshal(struct {
		Version int          `json:"Version"`
		Data    session.Data `json:"Data"`
	}{Version: 1, Data: data})
}
