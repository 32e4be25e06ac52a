package commands

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/twinforge/aaskit/backend"
	"github.com/twinforge/aaskit/config"
	"github.com/twinforge/aaskit/errors"
	"github.com/twinforge/aaskit/logger"
	"github.com/twinforge/aaskit/model"
	"github.com/twinforge/aaskit/store"
)

// InspectCmd represents the inspect command
var InspectCmd = &cobra.Command{
	Use:   "inspect <config.toml>",
	Short: "Inspect a configuration and the object store it points at",
	Long: `Loads the given configuration file, reports the protocol backends it
configures, and summarizes the submodels and source mappings held in the
object store. The store is only read; inspect never creates one.

Examples:
  aaskit inspect aaskit.toml
  aaskit inspect deploy/plant-7.toml -v`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(args[0])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "validating configuration")
	}
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	pterm.DefaultHeader.WithFullWidth().Printf("AASKit - %s", args[0])
	pterm.Println()

	if err := printBackends(registry); err != nil {
		return err
	}
	pterm.Println()

	storePath := cfg.GetStorePath()
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		pterm.Info.Printf("No object store at %s yet\n", storePath)
		return nil
	}
	verbosity, _ := cmd.Flags().GetCount("verbose")
	return printStore(cfg, registry, verbosity)
}

func printBackends(registry *backend.Registry) error {
	protocols := registry.Protocols()
	sort.Slice(protocols, func(i, j int) bool { return protocols[i] < protocols[j] })

	rows := pterm.TableData{{"Protocol", "Objects", "Values", "Subscribe"}}
	for _, p := range protocols {
		rows = append(rows, []string{
			string(p),
			capability(func() error { _, err := registry.ObjectBackend(p); return err }),
			capability(func() error { _, err := registry.ValueBackend(p); return err }),
			capability(func() error { _, err := registry.ValueSubscriber(p); return err }),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// capability renders a registry probe as a table cell.
func capability(probe func() error) string {
	if probe() == nil {
		return "yes"
	}
	return "-"
}

func printStore(cfg *config.Config, registry *backend.Registry, verbosity int) error {
	mem, _, cleanup, err := loadStore(cfg, registry, store.Options{})
	if err != nil {
		return err
	}
	defer cleanup()

	pterm.Info.Printf("Object store: %s (%d objects)\n", cfg.GetStorePath(), mem.Len())
	pterm.Println()

	var submodels []*model.Submodel
	var rows pterm.TableData
	_ = mem.Each(func(x model.Identifiable) bool {
		sm, ok := x.(*model.Submodel)
		if !ok {
			return true
		}
		submodels = append(submodels, sm)
		elements, mapped, protocols := mappingSummary(mem, sm)
		rows = append(rows, []string{
			sm.IDShort(),
			sm.ID(),
			strconv.Itoa(elements),
			strconv.Itoa(mapped),
			protocols,
		})
		return true
	})
	if len(rows) == 0 {
		pterm.Info.Println("No submodels stored")
		return nil
	}
	// Store iteration order is unspecified; keep output stable.
	sort.Slice(rows, func(i, j int) bool { return rows[i][1] < rows[j][1] })
	rows = append(pterm.TableData{{"Submodel", "ID", "Elements", "Mapped", "Protocols"}}, rows...)
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	if logger.ShouldOutput(verbosity, logger.OutputDispatch) {
		sort.Slice(submodels, func(i, j int) bool { return submodels[i].ID() < submodels[j].ID() })
		printMappingDetail(mem, submodels)
	}
	return nil
}

// printMappingDetail lists every mapped element per submodel with its
// protocols, one indented line each.
func printMappingDetail(s *store.Store, submodels []*model.Submodel) {
	for _, sm := range submodels {
		var lines []string
		model.WalkSubmodel(sm, func(el model.SubmodelElement) bool {
			ps := s.Protocols(el)
			if len(ps) == 0 {
				return true
			}
			names := make([]string, len(ps))
			for i, p := range ps {
				names[i] = string(p)
			}
			lines = append(lines, fmt.Sprintf("  %-48s %s", elementPath(el), strings.Join(names, ",")))
			return true
		})
		if len(lines) == 0 {
			continue
		}
		pterm.Println()
		pterm.Info.Printf("Mappings in %s:\n", sm.IDShort())
		sort.Strings(lines)
		for _, line := range lines {
			pterm.Printf("%s\n", line)
		}
	}
}

// elementPath renders an element's position as a dotted id-short chain below
// its submodel.
func elementPath(el model.SubmodelElement) string {
	ref, err := model.ModelReferenceTo(el)
	if err != nil || len(ref.Keys) < 2 {
		return el.IDShort()
	}
	parts := make([]string, 0, len(ref.Keys)-1)
	for _, k := range ref.Keys[1:] {
		parts = append(parts, k.Value)
	}
	return strings.Join(parts, ".")
}

// mappingSummary walks sm counting its elements and how many of them carry a
// source mapping, collecting the protocols involved.
func mappingSummary(s *store.Store, sm *model.Submodel) (elements, mapped int, protocols string) {
	seen := make(map[backend.Protocol]struct{})
	model.WalkSubmodel(sm, func(el model.SubmodelElement) bool {
		elements++
		ps := s.Protocols(el)
		if len(ps) > 0 {
			mapped++
			for _, p := range ps {
				seen[p] = struct{}{}
			}
		}
		return true
	})
	if len(seen) == 0 {
		return elements, mapped, "-"
	}
	names := make([]string, 0, len(seen))
	for p := range seen {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return elements, mapped, strings.Join(names, ",")
}
