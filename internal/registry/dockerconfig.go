package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// authFile is the shared shape of both credential store conventions:
// a host-keyed map under "auths". Unknown fields are preserved verbatim
// by keeping entries as raw JSON.
type authFile struct {
	Auths map[string]json.RawMessage `json:"auths"`
}

// SyncDockerConfig copies registry credentials from the container-runtime
// store (~/.config/containers/auth.json, written by `oc registry login`)
// into the Docker-convention store ko reads (~/.docker/config.json).
//
// Entries from the container store win on conflict; credentials for
// unrelated hosts in the Docker store are never dropped. A DOCKER_CONFIG
// environment override redirects the destination directory.
func SyncDockerConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	src := filepath.Join(home, ".config", "containers", "auth.json")
	dstDir := os.Getenv("DOCKER_CONFIG")
	if dstDir == "" {
		dstDir = filepath.Join(home, ".docker")
	}
	dst := filepath.Join(dstDir, "config.json")

	return mergeAuthFiles(src, dst)
}

func mergeAuthFiles(src, dst string) error {
	srcRaw, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		// Nothing to sync.
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}

	dstRaw, err := os.ReadFile(dst)
	if os.IsNotExist(err) {
		return writeFile(dst, srcRaw)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", dst, err)
	}

	var srcCfg authFile
	if err := json.Unmarshal(srcRaw, &srcCfg); err != nil {
		return fmt.Errorf("parsing %s: %w", src, err)
	}

	var dstCfg map[string]json.RawMessage
	if err := json.Unmarshal(dstRaw, &dstCfg); err != nil {
		// Destination is not valid JSON. Replace it wholesale.
		return writeFile(dst, srcRaw)
	}

	var dstAuths map[string]json.RawMessage
	if raw, ok := dstCfg["auths"]; ok {
		if err := json.Unmarshal(raw, &dstAuths); err != nil {
			return fmt.Errorf("parsing auths in %s: %w", dst, err)
		}
	}
	if dstAuths == nil {
		dstAuths = map[string]json.RawMessage{}
	}

	// Freshly written credentials win; everything else stays.
	for host, entry := range srcCfg.Auths {
		dstAuths[host] = entry
	}

	mergedAuths, err := json.Marshal(dstAuths)
	if err != nil {
		return fmt.Errorf("encoding merged auths: %w", err)
	}
	dstCfg["auths"] = mergedAuths

	merged, err := json.MarshalIndent(dstCfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", dst, err)
	}
	return writeFile(dst, merged)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
