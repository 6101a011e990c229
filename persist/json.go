package persist

import (
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/NebulousLabs/fastrand"
)

// SaveJSON marshals v as indented JSON and writes it to filename with a
// single os.WriteFile call (not atomic: a crash mid-write can leave a
// truncated file), matching rivine's persist.SaveJSON helper used for
// backup/export files.
func SaveJSON(v interface{}, filename string) error {
	data, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0600)
}

// LoadJSON reads filename and unmarshals it as JSON into v.
func LoadJSON(filename string, v interface{}) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// RandomSuffix returns a short random hex string, used to disambiguate
// generated filenames (e.g. wallet backups written in the same second).
func RandomSuffix() string {
	var b [6]byte
	fastrand.Read(b[:])
	return hex.EncodeToString(b[:])
}
