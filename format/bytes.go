// Package format - Formatierung von Byte-Groessen fuer Logging
//
// Diese Datei enthaelt:
// - HumanBytes2: Binaere Byte-Formatierung (KiB/MiB/GiB)
// - HumanMegaBytes: MB-Werte fuer Log-Ausgaben
package format

import "fmt"

const (
	KibiByte = 1024
	MebiByte = KibiByte * 1024
	GibiByte = MebiByte * 1024
)

// HumanBytes2 formatiert Bytes binaer mit einer Nachkommastelle
func HumanBytes2(b uint64) string {
	switch {
	case b >= GibiByte:
		return fmt.Sprintf("%.1f GiB", float64(b)/GibiByte)
	case b >= MebiByte:
		return fmt.Sprintf("%.1f MiB", float64(b)/MebiByte)
	case b >= KibiByte:
		return fmt.Sprintf("%.1f KiB", float64(b)/KibiByte)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// HumanMegaBytes formatiert einen MB-Wert fuer Logs
func HumanMegaBytes(mb uint64) string {
	return HumanBytes2(mb * MebiByte)
}
