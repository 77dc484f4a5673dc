// Package values serves the published snapshot: all current text values,
// single-key lookups and binary payloads in their transport encodings.
package values

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/KhaosKoder/khaos-settings/internal/config"
	"github.com/KhaosKoder/khaos-settings/internal/fault"
	"github.com/KhaosKoder/khaos-settings/internal/secret"
	"github.com/KhaosKoder/khaos-settings/internal/snapshot"
	"github.com/KhaosKoder/khaos-settings/internal/web/handler"
)

const (
	// Path is the route group for snapshot value lookups.
	Path = "/values"

	// BinaryPath is the route group for binary payload lookups.
	BinaryPath = "/binary"

	// EncodingBase64URL selects url-safe base64 without padding.
	EncodingBase64URL = "base64url"

	// EncodingUuencoded selects classic uuencoding.
	EncodingUuencoded = "uuencoded"
)

// Service is the values handler service.
type Service struct {
	handler.Service
	cfg    *config.Config
	source *snapshot.Source
}

// Handler is the values handler.
var Handler = Service{} //nolint:gochecknoglobals

// entry is the JSON shape of one snapshot value. Secret values are masked.
type entry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Secret bool   `json:"secret,omitempty"`
}

// listResponse is the JSON shape of the full snapshot listing.
type listResponse struct {
	SnapshotDigest string   `json:"snapshotDigest"`
	RowCount       int64    `json:"rowCount"`
	CreatedAt      string   `json:"createdAt"`
	Entries        []entry  `json:"entries"`
	BinaryKeys     []string `json:"binaryKeys,omitempty"`
}

// Init initializes the values handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, source *snapshot.Source) error {
	if app == nil || cfg == nil || source == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg) //nolint:goerr113
	}

	s.cfg = cfg
	s.source = source

	// register routes
	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.List)
		router.Get("/:key", s.Get)
	})

	app.Route(BinaryPath, func(router fiber.Router) {
		router.Get("/:key", s.GetBinary)
	})

	return nil
}

// List returns every text value of the current snapshot. Secret values are
// always masked on this surface.
func (s *Service) List(c *fiber.Ctx) error {
	snap := s.source.Current()
	entries := snap.Entries()

	out := listResponse{
		SnapshotDigest: snap.Digest(),
		RowCount:       snap.RowCount(),
		CreatedAt:      snap.CreatedAt().Format(time.RFC3339Nano),
		Entries:        make([]entry, 0, len(entries)),
	}

	for _, e := range entries {
		v := e.Value
		if e.Secret {
			v = secret.Mask(v)
		}

		out.Entries = append(out.Entries, entry{Key: e.Key, Value: v, Secret: e.Secret})
	}

	sort.Slice(out.Entries, func(i, j int) bool {
		return strings.ToLower(out.Entries[i].Key) < strings.ToLower(out.Entries[j].Key)
	})

	out.BinaryKeys = snap.BinaryKeys()
	sort.Strings(out.BinaryKeys)

	return c.JSON(out)
}

// Get returns one text value by case-insensitive key. Secret values are
// masked.
func (s *Service) Get(c *fiber.Ctx) error {
	key := c.Params("key")

	found, ok := s.source.Current().Lookup(key)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(errBody(fault.NotFound(key, "", "")))
	}

	e := entry{Key: found.Key, Value: found.Value, Secret: found.Secret}
	if e.Secret {
		e.Value = secret.Mask(e.Value)
	}

	return c.JSON(e)
}

// GetBinary returns one binary value by case-insensitive key, encoded per
// the enc query parameter. Default is base64url.
func (s *Service) GetBinary(c *fiber.Ctx) error {
	var (
		key     = c.Params("key")
		enc     = c.Query("enc", EncodingBase64URL)
		payload string
		err     error
	)

	switch enc {
	case EncodingBase64URL:
		payload, err = s.source.BinaryBase64URL(key)
	case EncodingUuencoded:
		payload, err = s.source.BinaryUuencoded(key)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown encoding: " + enc,
		})
	}

	if err != nil {
		status := fiber.StatusInternalServerError
		if fault.CodeOf(err) == fault.CodeNotFound {
			status = fiber.StatusNotFound
		}

		return c.Status(status).JSON(errBody(err))
	}

	return c.JSON(fiber.Map{
		"key":      key,
		"encoding": enc,
		"payload":  payload,
	})
}

func errBody(err error) fiber.Map {
	body := fiber.Map{"error": err.Error()}

	var domainErr *fault.Error
	if errors.As(err, &domainErr) {
		body["code"] = int(domainErr.Code)
	}

	return body
}
