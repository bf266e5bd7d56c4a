package nativehost

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

// HostName is the native messaging host identifier. The extension
// connects to it by this name.
const HostName = "com.pagewatch.host"

const hostDescription = "Web data monitoring assistant native host"

// Browser is a browser that supports native messaging.
type Browser string

const (
	BrowserChrome   Browser = "chrome"
	BrowserFirefox  Browser = "firefox"
	BrowserChromium Browser = "chromium"
	BrowserEdge     Browser = "edge"
	BrowserBrave    Browser = "brave"
)

// SupportedBrowsers returns all browsers that support native messaging.
func SupportedBrowsers() []Browser {
	return []Browser{BrowserChrome, BrowserFirefox, BrowserChromium, BrowserEdge, BrowserBrave}
}

// ParseBrowser validates a browser name.
func ParseBrowser(name string) (Browser, error) {
	for _, b := range SupportedBrowsers() {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("unsupported browser: %s", name)
}

// ChromeManifest is the manifest format of Chromium-based browsers.
type ChromeManifest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Path           string   `json:"path"`
	Type           string   `json:"type"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// FirefoxManifest is the manifest format of Firefox.
type FirefoxManifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

// GenerateChromeManifest creates a Chromium-family manifest.
func GenerateChromeManifest(hostPath, extensionID string) []byte {
	b, _ := json.MarshalIndent(ChromeManifest{
		Name:           HostName,
		Description:    hostDescription,
		Path:           hostPath,
		Type:           "stdio",
		AllowedOrigins: []string{"chrome-extension://" + extensionID + "/"},
	}, "", "  ")
	return b
}

// GenerateFirefoxManifest creates a Firefox manifest.
func GenerateFirefoxManifest(hostPath, extensionID string) []byte {
	b, _ := json.MarshalIndent(FirefoxManifest{
		Name:              HostName,
		Description:       hostDescription,
		Path:              hostPath,
		Type:              "stdio",
		AllowedExtensions: []string{extensionID},
	}, "", "  ")
	return b
}

// nativeMessagingDirs maps each browser to its per-user manifest
// directory, relative to the home directory.
var nativeMessagingDirs = map[string]map[Browser][]string{
	"darwin": {
		BrowserChrome:   {"Library", "Application Support", "Google", "Chrome", "NativeMessagingHosts"},
		BrowserChromium: {"Library", "Application Support", "Chromium", "NativeMessagingHosts"},
		BrowserFirefox:  {"Library", "Application Support", "Mozilla", "NativeMessagingHosts"},
		BrowserEdge:     {"Library", "Application Support", "Microsoft Edge", "NativeMessagingHosts"},
		BrowserBrave:    {"Library", "Application Support", "BraveSoftware", "Brave-Browser", "NativeMessagingHosts"},
	},
	"linux": {
		BrowserChrome:   {".config", "google-chrome", "NativeMessagingHosts"},
		BrowserChromium: {".config", "chromium", "NativeMessagingHosts"},
		BrowserFirefox:  {".mozilla", "native-messaging-hosts"},
		BrowserEdge:     {".config", "microsoft-edge", "NativeMessagingHosts"},
		BrowserBrave:    {".config", "BraveSoftware", "Brave-Browser", "NativeMessagingHosts"},
	},
}

// getManifestPath returns the manifest file path for a browser, or ""
// when the platform is not supported. Windows browsers locate manifests
// through the registry; the file is kept under AppData and the registry
// entry is left to the installer package.
func getManifestPath(browser Browser, platform, homeDir string) string {
	manifestFile := HostName + ".json"
	if platform == "windows" {
		return filepath.Join(homeDir, "AppData", "Local", "pagewatch", "NativeMessagingHosts", string(browser), manifestFile)
	}
	dirs, ok := nativeMessagingDirs[platform]
	if !ok {
		return ""
	}
	parts, ok := dirs[browser]
	if !ok {
		return ""
	}
	return filepath.Join(append(append([]string{homeDir}, parts...), manifestFile)...)
}

// ManifestInstaller installs and removes native messaging manifests.
type ManifestInstaller struct {
	HostPath           string
	ChromeExtensionID  string
	FirefoxExtensionID string
	BaseDir            string // Overrides the home directory
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

func (m *ManifestInstaller) fs() afero.Fs {
	if m.Fs == nil {
		return afero.NewOsFs()
	}
	return m.Fs
}

// Validate checks the fields needed to install for browser.
func (m *ManifestInstaller) Validate(browser Browser) error {
	if m.HostPath == "" {
		return errors.New("host path is required")
	}
	if browser == BrowserFirefox {
		if m.FirefoxExtensionID == "" {
			return errors.New("firefox extension ID is required")
		}
		return nil
	}
	if m.ChromeExtensionID == "" {
		return errors.New("chrome extension ID is required")
	}
	return nil
}

func (m *ManifestInstaller) homeDir() (string, error) {
	if m.BaseDir != "" {
		return m.BaseDir, nil
	}
	return os.UserHomeDir()
}

// Path returns where the manifest for browser is installed.
func (m *ManifestInstaller) Path(browser Browser) (string, error) {
	home, err := m.homeDir()
	if err != nil {
		return "", err
	}
	platform := detectPlatform()
	p := getManifestPath(browser, platform, home)
	if p == "" {
		return "", fmt.Errorf("unsupported browser/platform: %s/%s", browser, platform)
	}
	return p, nil
}

// Install writes the manifest for browser and returns its path.
func (m *ManifestInstaller) Install(browser Browser) (string, error) {
	if err := m.Validate(browser); err != nil {
		return "", err
	}
	path, err := m.Path(browser)
	if err != nil {
		return "", err
	}
	manifest := GenerateChromeManifest(m.HostPath, m.ChromeExtensionID)
	if browser == BrowserFirefox {
		manifest = GenerateFirefoxManifest(m.HostPath, m.FirefoxExtensionID)
	}
	fsys := m.fs()
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := afero.WriteFile(fsys, path, manifest, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// Uninstall removes the manifest for browser. A missing manifest is not
// an error.
func (m *ManifestInstaller) Uninstall(browser Browser) (string, error) {
	path, err := m.Path(browser)
	if err != nil {
		return "", err
	}
	err = m.fs().Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return path, nil
	}
	return path, err
}

// Installed reports whether the manifest for browser exists, and where.
func (m *ManifestInstaller) Installed(browser Browser) (string, bool, error) {
	path, err := m.Path(browser)
	if err != nil {
		return "", false, err
	}
	ok, err := afero.Exists(m.fs(), path)
	return path, ok, err
}

// detectPlatform returns the current OS platform. Tests replace it.
var detectPlatform = func() string {
	return runtime.GOOS
}
