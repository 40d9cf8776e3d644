package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/teamcutter/vendr/internal/domain"
)

// HostID derives the machine code from the host's platform UUID
// (smbios on Windows, IOPlatformUUID on macOS). The raw UUID never leaves
// the machine; only the condensed hash is sent to the gateway.
type HostID struct{}

func New() *HostID {
	return &HostID{}
}

func (p *HostID) MachineCode() (string, error) {
	id, err := host.HostID()
	if err != nil {
		return "", domain.Wrap(domain.KindIdentityUnavailable, "cannot read machine identifier", err).
			WithRemedy("run vendr with permissions to query the platform UUID")
	}
	if id == "" {
		return "", domain.E(domain.KindIdentityUnavailable, "machine identifier is empty").
			WithRemedy("run vendr with permissions to query the platform UUID")
	}

	sum := sha256.Sum256([]byte(strings.ToLower(id)))
	return strings.ToUpper(hex.EncodeToString(sum[:8])), nil
}
