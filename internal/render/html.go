package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
)

// Writer renders committed checkbook data into a printable HTML document
// with an embedded QR handover slip. Rendering happens after the
// allocation transaction commits; a render failure leaves the range
// issued and is recovered through the not_printed reprint path.
type Writer struct {
	outputDir string
	tmpl      *template.Template
}

func NewWriter() (*Writer, error) {
	viper.SetDefault("render.output_dir", "./output/checkbooks")
	outputDir := viper.GetString("render.output_dir")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpl, err := template.New("checkbook").Parse(checkbookTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse checkbook template: %w", err)
	}

	return &Writer{outputDir: outputDir, tmpl: tmpl}, nil
}

// WriteCheckbook renders data to an HTML file named after its reference
// and returns the file path.
func (w *Writer) WriteCheckbook(data *CheckbookData) (string, error) {
	slip, err := w.handoverSlip(data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = w.tmpl.Execute(&buf, struct {
		*CheckbookData
		HandoverQR template.URL
	}{data, template.URL(slip)})
	if err != nil {
		return "", fmt.Errorf("failed to render checkbook %s: %w", data.Reference, err)
	}

	path := filepath.Join(w.outputDir, data.Reference+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checkbook file: %w", err)
	}

	log.Printf("[RENDER] Checkbook %s written to %s (%d checks)", data.Reference, path, len(data.Checks))
	return path, nil
}

// handoverSlip encodes the reference and serial range as a QR data URI
// for the teller handover slip.
func (w *Writer) handoverSlip(data *CheckbookData) (string, error) {
	content := fmt.Sprintf("ref=%s;account=%s;from=%d;to=%d",
		data.Reference, data.AccountNumber, data.FirstSerial, data.LastSerial)

	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to encode handover QR: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

const checkbookTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Checkbook {{.Reference}}</title>
<style>
  body { font-family: Arial, sans-serif; margin: 0; }
  .slip { padding: 16px; border-bottom: 2px dashed #999; text-align: center; }
  .slip img { width: 160px; height: 160px; }
  .check { position: relative; border: 1px solid #333; margin: 8px auto; page-break-inside: avoid; }
  .branch { position: absolute; top: 6mm; left: 0; right: 0; text-align: center; font-size: 13px; }
  .serial { position: absolute; top: 12mm; right: 10mm; font-size: 13px; }
  .holder { position: absolute; bottom: 12mm; left: 10mm; font-size: 12px; }
  .micr { position: absolute; bottom: 3mm; left: 0; right: 0; text-align: center;
          font-family: 'MICR E-13B', 'Courier New', monospace; font-size: 15px; }
  @media print { .slip { page-break-after: always; } }
</style>
</head>
<body>
<div class="slip">
  <h2>{{.BranchName}}</h2>
  <p>{{.HolderName}} / {{.AccountNumber}}</p>
  <p>Serials {{.FirstSerial}} &ndash; {{.LastSerial}}</p>
  <img src="{{.HandoverQR}}" alt="handover">
  <p>{{.Reference}}</p>
</div>
{{range .Checks}}
<div class="check" style="width: {{.Size.Width}}mm; height: {{.Size.Height}}mm;">
  <div class="branch">{{.BranchName}}</div>
  <div class="serial">{{.SerialNumber}}</div>
  <div class="holder">{{.HolderName}}</div>
  <div class="micr">{{.MICRDisplay}}</div>
</div>
{{end}}
</body>
</html>
`
