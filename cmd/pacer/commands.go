package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/pacer/internal/extraction"
	pacerhttp "github.com/fyrsmithlabs/pacer/internal/http"
	"github.com/fyrsmithlabs/pacer/internal/prediction"
)

// maxInputBytes bounds text read from stdin.
const maxInputBytes = 64 * 1024

// errNoEstimate is returned after printing a failed prediction so the exit
// status is non-zero.
var errNoEstimate = errors.New("no estimate")

func newEstimateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate [text|-]",
		Short: "Estimate a half-marathon time from a runner description",
		Long: `Extract gender, age and 5 km time from a description and estimate a
half-marathon finish time.

Examples:
  # Polish or English, quoted or not
  pacer estimate "Jestem kobieta, 41 lat, 5 km w 27:10"
  pacer estimate male 35 years 5k PB 22:10

  # Read from stdin
  echo "M, 30 lat, 5km 24:30" | pacer estimate -

  # JSON, same shape as POST /api/v1/estimate
  pacer estimate --json "female, 28, 5 km 25 min"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{model: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			out := a.coordinator.Run(ctx, text)
			res := a.engine.Predict(ctx, out.Result)

			w := cmd.OutOrStdout()
			if flags.jsonOutput {
				if err := writeJSON(w, pacerhttp.EstimateResponse{
					Extraction: pacerhttp.NewExtractResponse(out),
					Prediction: res,
				}); err != nil {
					return err
				}
			} else {
				printExtraction(w, pacerhttp.NewExtractResponse(out), nil)
				fmt.Fprintln(w)
				printPrediction(w, res)
			}

			if !res.Success {
				return fmt.Errorf("%w: %s", errNoEstimate, res.Error)
			}
			return nil
		},
	}
}

func newExtractCmd(flags *globalFlags) *cobra.Command {
	var showRules bool

	cmd := &cobra.Command{
		Use:   "extract [text|-]",
		Short: "Extract gender, age and 5 km time from a description",
		Long: `Extract gender, age and 5 km time from a description without predicting.

Examples:
  # Show what was found and what is missing
  pacer extract "30 lat, 5 km 24:30"

  # Show which pattern rule resolved each field
  pacer extract --rules "kobieta 41 lat 27:10"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			resp := pacerhttp.NewExtractResponse(a.coordinator.Run(ctx, text))
			var rules map[string]string
			if showRules {
				rules = extraction.NewPatternExtractor().Matched(text)
			}

			w := cmd.OutOrStdout()
			if flags.jsonOutput {
				return writeJSON(w, struct {
					pacerhttp.ExtractResponse
					Rules map[string]string `json:"rules,omitempty"`
				}{resp, rules})
			}
			printExtraction(w, resp, rules)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showRules, "rules", false, "show the pattern rule that resolved each field")
	return cmd
}

func newPredictCmd(flags *globalFlags) *cobra.Command {
	var gender, age, timeArg string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a half-marathon time from explicit values",
		Long: `Predict a half-marathon finish time from gender, age and 5 km time.

The time may be given in seconds (1470), as MM:SS (24:30) or with a unit
(25 min). A bare number below 100 is read as minutes.

Examples:
  pacer predict --gender male --age 30 --time 24:30
  pacer predict --gender K --age 41 --time 1630 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{model: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			res := a.engine.PredictRequest(ctx, predictRequest(gender, age, timeArg))

			w := cmd.OutOrStdout()
			if flags.jsonOutput {
				if err := writeJSON(w, res); err != nil {
					return err
				}
			} else {
				printPrediction(w, res)
			}
			if !res.Success {
				return fmt.Errorf("%w: %s", errNoEstimate, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&gender, "gender", "", "male or female (M/K and Polish words accepted)")
	cmd.Flags().StringVar(&age, "age", "", "age in years")
	cmd.Flags().StringVar(&timeArg, "time", "", "5 km time")
	return cmd
}

// predictRequest maps flag values onto a Request. Values the CLI cannot
// interpret are passed through so validation reports them.
func predictRequest(gender, age, timeArg string) prediction.Request {
	req := prediction.Request{Gender: gender}
	if g, ok := extraction.ParseGender(gender); ok {
		req.Gender = string(g)
	}
	if age != "" {
		req.Age = age
	}
	if timeArg != "" {
		req.Time5KSeconds = timeArg
		if secs, ok := extraction.ParseTime(timeArg); ok {
			req.Time5KSeconds = secs
		}
	}
	return req
}

func newModelCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Show the regression model in use",
		Long: `Load the regression model the way serve would and describe it. Without a
model artifact the heuristic is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{model: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			meta := a.engine.Model()
			w := cmd.OutOrStdout()
			if flags.jsonOutput {
				return writeJSON(w, meta)
			}
			fmt.Fprintf(w, "Kind:     %s\n", meta.Kind)
			fmt.Fprintf(w, "Version:  %s\n", meta.Version)
			fmt.Fprintf(w, "Source:   %s\n", meta.Source)
			fmt.Fprintf(w, "Loaded:   %t\n", meta.Loaded)
			if len(meta.FeatureOrder) > 0 {
				fmt.Fprintf(w, "Features: %s\n", strings.Join(meta.FeatureOrder, ", "))
			}
			return nil
		},
	}
}

// readText joins the arguments, or reads stdin when there are none or the
// only one is "-".
func readText(cmd *cobra.Command, args []string) (string, error) {
	var text string
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxInputBytes+1))
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		if len(data) > maxInputBytes {
			return "", fmt.Errorf("input exceeds %d bytes", maxInputBytes)
		}
		text = string(data)
	} else {
		text = strings.Join(args, " ")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no text given")
	}
	return text, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func printExtraction(w io.Writer, resp pacerhttp.ExtractResponse, rules map[string]string) {
	r := resp.Result
	value := func(field string, present bool, s string) string {
		if !present {
			return "-"
		}
		if name, ok := rules[field]; ok {
			return fmt.Sprintf("%s  (rule %s)", s, name)
		}
		return s
	}

	fmt.Fprintf(w, "Gender:  %s\n", value(extraction.FieldGender, r.Gender != extraction.GenderUnknown, string(r.Gender)))
	age := ""
	if r.Age != nil {
		age = fmt.Sprint(*r.Age)
	}
	fmt.Fprintf(w, "Age:     %s\n", value(extraction.FieldAge, r.Age != nil, age))
	t := ""
	if r.Time5KSeconds != nil {
		t = fmt.Sprintf("%s (%d s)", clock(*r.Time5KSeconds), *r.Time5KSeconds)
	}
	fmt.Fprintf(w, "5 km:    %s\n", value(extraction.FieldTime5K, r.Time5KSeconds != nil, t))
	fmt.Fprintf(w, "Path:    %s\n", resp.Path)

	if len(resp.Missing) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Missing:")
		for _, m := range resp.Missing {
			fmt.Fprintf(w, "  %s: %s\n", m.Field, m.Hint)
		}
	}
}

func printPrediction(w io.Writer, res prediction.Result) {
	if !res.Success {
		fmt.Fprintf(w, "Cannot estimate: %s\n", res.Error)
		if res.Hint != "" {
			fmt.Fprintf(w, "Hint: %s\n", res.Hint)
		}
		return
	}
	fmt.Fprintf(w, "Half marathon: %s\n", res.Formatted)
	fmt.Fprintf(w, "Pace:          %s /km\n", res.PaceFormatted)
	fmt.Fprintf(w, "Mode:          %s (%s)\n", res.Mode, res.ModelVersion)
}

// clock formats seconds as M:SS.
func clock(secs int) string {
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
