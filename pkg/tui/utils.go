package tui

import (
	"os/exec"
	"runtime"

	"walletfolio/pkg/utils"
)

func (m model) displayUSD(v float64) string {
	if m.privacyMode {
		return "$" + utils.MaskedValue
	}
	return utils.FormatUSD(v, m.config.FiatDecimals)
}

func (m model) displaySignedUSD(v float64) string {
	if m.privacyMode {
		return "$" + utils.MaskedValue
	}
	return utils.FormatSignedUSD(v, m.config.FiatDecimals)
}

func (m model) displayETH(v float64) string {
	if m.privacyMode {
		return utils.MaskedValue + " ETH"
	}
	return utils.FormatETH(v, m.config.TokenDecimals)
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode {
		return "0x**...**"
	}
	return utils.ShortAddress(utils.ChecksumAddress(addr))
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
