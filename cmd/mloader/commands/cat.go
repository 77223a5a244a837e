package commands

import (
	"fmt"

	"github.com/Cjw9000-py/mloader/pkg/asset"

	"github.com/spf13/cobra"
)

var catAs string

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Load a resource as a typed asset",
	Long: `Resolve path through the active database and print its payload.
Text and shader assets are printed as text, binary assets are written raw,
images, sounds and fonts print their detected format and size.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ML == nil {
			return fmt.Errorf("app not initialized")
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		path := args[0]
		opt := asset.WithRegistry(ML.Databases)

		switch kind := asset.ParseKind(catAs); kind {
		case asset.KindBinary:
			data, err := asset.NewBinary(path, opt).Data(ctx)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		case asset.KindText:
			text, err := asset.NewText(path, opt).Text(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(out, text)
			return err
		case asset.KindShader:
			src, err := asset.NewShader(path, opt).Source(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(out, src)
			return err
		case asset.KindImage:
			img, err := asset.NewImage(path, opt).Image(ctx)
			if err != nil {
				return err
			}
			return printSummary(cmd, kind, img.Format, len(img.Pixels))
		case asset.KindSound:
			snd, err := asset.NewSound(path, opt).Sound(ctx)
			if err != nil {
				return err
			}
			return printSummary(cmd, kind, snd.Format, len(snd.Samples))
		case asset.KindFont:
			font, err := asset.NewFont(path, opt).Font(ctx)
			if err != nil {
				return err
			}
			return printSummary(cmd, kind, font.Format, len(font.Payload))
		default:
			return fmt.Errorf("unknown asset kind %q", catAs)
		}
	},
}

func printSummary(cmd *cobra.Command, kind asset.Kind, format string, size int) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d bytes\n", kind, format, size)
	return err
}

func init() {
	catCmd.Flags().StringVar(&catAs, "as", "text", "Asset kind (binary, text, shader, image, sound, font)")
	rootCmd.AddCommand(catCmd)
}
