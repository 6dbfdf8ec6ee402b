package cnf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NotificationSettings és la llista de destinataris i d'esdeveniments habilitats.
type NotificationSettings struct {
	Version       int64    `yaml:"version" json:"version"`
	Recipients    []string `yaml:"recipients" json:"recipients"`
	EnabledEvents []string `yaml:"enabledEvents" json:"enabledEvents"`
}

// LoadNotificationSettings llegeix el fitxer YAML. Si no existeix retorna una configuració buida.
func LoadNotificationSettings(path string) (NotificationSettings, error) {
	var s NotificationSettings
	if path == "" {
		return s, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("error obrint fitxer de notificacions: %w", err)
	}
	defer file.Close()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("error decodificant YAML: %w", err)
	}
	return s, nil
}

// SaveNotificationSettings escriu el fitxer de manera atòmica (fitxer temporal + rename).
func SaveNotificationSettings(path string, s NotificationSettings) error {
	if path == "" {
		return nil
	}
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("error codificant YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".notifications-*.yaml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
