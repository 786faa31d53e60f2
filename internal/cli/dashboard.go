package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/compras-gov/dispensa-guard/pkg/model"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Mostra o resumo de limites por categoria",
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := engine.Painel(cmd.Context())
	if err != nil {
		return fmt.Errorf("montar painel: %w", err)
	}

	fmt.Printf("=== Dispensa Guard ===\n")
	fmt.Printf("Categorias:        %d (%d ativas)\n", p.TotalCategorias, p.CategoriasAtivas)
	fmt.Printf("Alertas nao lidos: %d\n", p.AlertasNaoLidos)

	if len(p.CategoriasCriticas) > 0 {
		fmt.Printf("\nCategorias criticas:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  CATEGORIA\tSTATUS\tANUAL\tMENSAL\n")
		for _, c := range p.CategoriasCriticas {
			fmt.Fprintf(w, "  %s\t%s\t%.1f%% (%s)\t%.1f%% (%s)\n",
				c.Categoria.Nome, c.Status,
				c.Anual.PercentualUsado, c.Anual.Status,
				c.Mensal.PercentualUsado, c.Mensal.Status)
		}
		w.Flush()
	}

	if len(p.AlertasRecentes) > 0 {
		fmt.Printf("\nAlertas recentes:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  TIPO\tPERIODO\tUSO\tMENSAGEM\n")
		for _, a := range p.AlertasRecentes {
			fmt.Fprintf(w, "  %s\t%s\t%.1f%%\t%s\n", a.Tipo, a.Periodo, a.PercentualUsado, a.Mensagem)
		}
		w.Flush()
	}

	if len(p.DispensasRecentes) > 0 {
		fmt.Printf("\nDispensas recentes:\n")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  VALOR\tPERIODO\tREFERENCIA\tSTATUS\n")
		for _, d := range p.DispensasRecentes {
			referencia := fmt.Sprintf("%d", d.ReferenciaAno)
			if d.Periodo == model.PeriodoMensal {
				referencia = fmt.Sprintf("%02d/%d", d.ReferenciaMes, d.ReferenciaAno)
			}
			fmt.Fprintf(w, "  R$ %.2f\t%s\t%s\t%s\n", d.Valor, d.Periodo, referencia, d.Status)
		}
		w.Flush()
	}

	return nil
}
