// qrgen generates the QR code image for an order token, for testing a
// terminal without the storefront: point the kitchen camera at the PNG.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
)

func main() {
	var (
		out      = flag.String("o", "order.png", "output PNG path")
		size     = flag.Int("size", 512, "image size in pixels")
		envelope = flag.Bool("envelope", false, "wrap the ID in a JSON order envelope")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: qrgen [-o out.png] [-size 512] [-envelope] <order-id>")
		os.Exit(2)
	}

	token := flag.Arg(0)
	if *envelope {
		data, err := json.Marshal(map[string]string{"id": token, "type": "order"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build envelope: %v\n", err)
			os.Exit(1)
		}
		token = string(data)
	}

	if err := qrcode.WriteFile(token, qrcode.Medium, *size, *out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write QR code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s\n", *out)
}
