package features

import (
	"log/slog"
	"net"

	"github.com/shelepuginivan/statusbar/config"
)

// link is a network interface as seen by the network updater.
type link struct {
	name     string
	up       bool
	loopback bool
	addrs    []net.IP
}

// networkUpdater renders the first connected network interface.
type networkUpdater struct {
	cfg    config.NetworkConfig
	links  func() ([]link, error)
	logger *slog.Logger
}

func (u *networkUpdater) Update() string {
	links, err := u.links()
	if err != nil {
		u.logger.Debug("Failed to list network interfaces", "error", err)
		return renderTemplate(u.cfg.Template, map[string]string{"IFACE": "?", "IP": "?"})
	}

	for _, l := range links {
		if !l.up || l.loopback {
			continue
		}

		ip := preferredIP(l.addrs)
		if ip == nil {
			continue
		}

		return renderTemplate(u.cfg.Template, map[string]string{
			"IFACE": l.name,
			"IP":    ip.String(),
		})
	}

	return u.cfg.Offline
}

// preferredIP returns the first IPv4 address, or the first address if there
// is none.
func preferredIP(addrs []net.IP) net.IP {
	for _, ip := range addrs {
		if ip.To4() != nil {
			return ip
		}
	}

	if len(addrs) > 0 {
		return addrs[0]
	}

	return nil
}

// systemLinks lists network interfaces of the host. Link-local addresses are
// omitted.
func systemLinks() ([]link, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	links := make([]link, 0, len(ifaces))

	for _, iface := range ifaces {
		l := link{
			name:     iface.Name,
			up:       iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagRunning != 0,
			loopback: iface.Flags&net.FlagLoopback != 0,
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLinkLocalUnicast() {
				continue
			}

			l.addrs = append(l.addrs, ipnet.IP)
		}

		links = append(links, l)
	}

	return links, nil
}
