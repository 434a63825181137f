// Package hostinfo describes the host the service runs on: the device-tree
// model on ARM carriers, DMI data where firmware provides it, and memory
// population from SMBIOS. Small boards expose only a subset of these sources,
// so every collector is best effort and Collect never fails.
package hostinfo

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"github.com/jaypipes/ghw"
	"github.com/siderolabs/go-smbios/smbios"

	"github.com/tummler-rov/autopilot-manager/logger"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Info is the host description served by the API.
type Info struct {
	Hostname string `json:"hostname,omitempty"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`

	// Model is the device-tree model string, e.g.
	// "Raspberry Pi 4 Model B Rev 1.4". Empty on non-devicetree hosts.
	Model string `json:"model,omitempty"`

	Product   *ProductInfo   `json:"product,omitempty"`
	Baseboard *BaseboardInfo `json:"baseboard,omitempty"`
	BIOS      *BIOSInfo      `json:"bios,omitempty"`
	MemoryMB  int64          `json:"memory_mb,omitempty"`
}

type ProductInfo struct {
	Vendor       string `json:"vendor,omitempty"`
	Name         string `json:"name,omitempty"`
	Version      string `json:"version,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

type BaseboardInfo struct {
	Vendor       string `json:"vendor,omitempty"`
	Product      string `json:"product,omitempty"`
	Version      string `json:"version,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

type BIOSInfo struct {
	Vendor  string `json:"vendor,omitempty"`
	Version string `json:"version,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Collect gathers whatever the host exposes. Missing sources are logged at
// debug level and leave their fields empty.
func Collect() *Info {
	log := logger.Named("hostinfo")

	info := &Info{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	model, err := deviceTreeModel(deviceTreeModelPath)
	if err != nil {
		log.Debugf("device-tree model: %v", err)
	} else {
		info.Model = model
	}

	if product, err := ghw.Product(); err != nil {
		log.Debugf("dmi product: %v", err)
	} else {
		info.Product = &ProductInfo{
			Vendor:       product.Vendor,
			Name:         product.Name,
			Version:      product.Version,
			SerialNumber: product.SerialNumber,
		}
	}

	if baseboard, err := ghw.Baseboard(); err != nil {
		log.Debugf("dmi baseboard: %v", err)
	} else {
		info.Baseboard = &BaseboardInfo{
			Vendor:       baseboard.Vendor,
			Product:      baseboard.Product,
			Version:      baseboard.Version,
			SerialNumber: baseboard.SerialNumber,
		}
	}

	if bios, err := ghw.BIOS(); err != nil {
		log.Debugf("dmi bios: %v", err)
	} else {
		info.BIOS = &BIOSInfo{
			Vendor:  bios.Vendor,
			Version: bios.Version,
			Date:    bios.Date,
		}
	}

	if mb, err := installedMemoryMB(); err != nil {
		log.Debugf("smbios memory: %v", err)
	} else {
		info.MemoryMB = mb
	}

	return info
}

// deviceTreeModel reads the firmware model string. Device-tree strings are
// NUL terminated.
func deviceTreeModel(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	model := string(bytes.TrimRight(raw, "\x00\n"))
	if model == "" {
		return "", fmt.Errorf("empty model in %s", path)
	}
	return model, nil
}

// installedMemoryMB sums the populated SMBIOS memory devices.
func installedMemoryMB() (int64, error) {
	sm, err := smbios.New()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, m := range sm.MemoryDevices {
		if m.Size == 0 {
			continue
		}
		total += int64(m.Size.Megabytes())
	}
	if total == 0 {
		return 0, fmt.Errorf("no populated memory devices")
	}
	return total, nil
}
