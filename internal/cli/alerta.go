package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

var alertaCmd = &cobra.Command{
	Use:   "alerta",
	Short: "Consulta e administra alertas de limite",
}

var alertaListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lista alertas emitidos",
	RunE:  runAlertaList,
}

var alertaLerCmd = &cobra.Command{
	Use:   "ler <id>",
	Short: "Marca um alerta como lido",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertaLer,
}

func init() {
	rootCmd.AddCommand(alertaCmd)
	alertaCmd.AddCommand(alertaListCmd)
	alertaCmd.AddCommand(alertaLerCmd)

	alertaListCmd.Flags().Bool("nao-lidos", false, "Somente alertas nao lidos")
	alertaListCmd.Flags().StringP("categoria", "c", "", "Filtra por categoria")
	alertaListCmd.Flags().Int("limit", 50, "Maximo de registros")
}

func runAlertaList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	naoLidos, _ := cmd.Flags().GetBool("nao-lidos")
	categoria, _ := cmd.Flags().GetString("categoria")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	filter := storage.AlertaFilter{CategoriaID: categoria, Limit: limit}
	if naoLidos {
		lida := false
		filter.Lida = &lida
	}

	list, err := store.ListAlertas(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("Nenhum alerta encontrado.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTIPO\tCATEGORIA\tPERIODO\tREFERENCIA\tUSO\tLIDA\tCRIADO\n")
	for _, a := range list {
		referencia := fmt.Sprintf("%d", a.ReferenciaAno)
		if a.Periodo == model.PeriodoMensal {
			referencia = fmt.Sprintf("%02d/%d", a.ReferenciaMes, a.ReferenciaAno)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f%%\t%v\t%s\n",
			a.ID, a.Tipo, a.CategoriaID, a.Periodo, referencia,
			a.PercentualUsado, a.Lida, a.CriadoEm.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runAlertaLer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.MarcarAlertaLido(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Alerta %s marcado como lido.\n", args[0])
	return nil
}
