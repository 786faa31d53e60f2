package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/compras-gov/dispensa-guard/pkg/limite"
	"github.com/compras-gov/dispensa-guard/pkg/model"
	"github.com/compras-gov/dispensa-guard/pkg/storage"
)

var dispensaCmd = &cobra.Command{
	Use:   "dispensa",
	Short: "Registra e acompanha dispensas de licitacao",
}

var dispensaRegistrarCmd = &cobra.Command{
	Use:   "registrar",
	Short: "Registra uma nova dispensa apos validar o limite",
	RunE:  runDispensaRegistrar,
}

var dispensaValidarCmd = &cobra.Command{
	Use:   "validar",
	Short: "Simula o registro de uma dispensa sem persistir nada",
	RunE:  runDispensaValidar,
}

var dispensaCancelarCmd = &cobra.Command{
	Use:   "cancelar <id>",
	Short: "Cancela uma dispensa ativa",
	Args:  cobra.ExactArgs(1),
	RunE:  runDispensaCancelar,
}

var dispensaListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lista dispensas registradas",
	RunE:  runDispensaList,
}

func init() {
	rootCmd.AddCommand(dispensaCmd)
	dispensaCmd.AddCommand(dispensaRegistrarCmd)
	dispensaCmd.AddCommand(dispensaValidarCmd)
	dispensaCmd.AddCommand(dispensaCancelarCmd)
	dispensaCmd.AddCommand(dispensaListCmd)

	for _, c := range []*cobra.Command{dispensaRegistrarCmd, dispensaValidarCmd} {
		c.Flags().StringP("categoria", "c", "", "Id da categoria")
		c.Flags().Float64P("valor", "v", 0, "Valor da dispensa em R$")
		c.Flags().StringP("periodo", "P", "anual", "Bucket de limite (anual, mensal)")
		c.Flags().Int("ano", 0, "Ano de referencia (padrao: atual)")
		c.Flags().Int("mes", 0, "Mes de referencia para periodo mensal (padrao: atual)")
		_ = c.MarkFlagRequired("categoria")
		_ = c.MarkFlagRequired("valor")
	}
	dispensaRegistrarCmd.Flags().String("numero", "", "Numero do processo")
	dispensaRegistrarCmd.Flags().String("objeto", "", "Objeto da contratacao")
	dispensaRegistrarCmd.Flags().Bool("forcar", false, "Registra mesmo com o bloqueio atingido")

	dispensaListCmd.Flags().StringP("categoria", "c", "", "Filtra por categoria")
	dispensaListCmd.Flags().String("status", "", "Filtra por status (ativa, cancelada, suspensa)")
	dispensaListCmd.Flags().Int("limit", 50, "Maximo de registros")
}

func dispensaFlags(cmd *cobra.Command) (string, float64, model.Periodo, model.Referencia, error) {
	categoria, _ := cmd.Flags().GetString("categoria")
	valor, _ := cmd.Flags().GetFloat64("valor")
	periodoStr, _ := cmd.Flags().GetString("periodo")
	ano, _ := cmd.Flags().GetInt("ano")
	mes, _ := cmd.Flags().GetInt("mes")

	periodo := model.Periodo(periodoStr)
	ref := model.Referencia{Ano: ano, Mes: mes}
	if ano == 0 {
		ref = model.ReferenciaAtual(periodo)
	}
	if err := model.ValidarReferencia(periodo, ref); err != nil {
		return "", 0, "", model.Referencia{}, err
	}
	return categoria, valor, periodo, ref, nil
}

func runDispensaRegistrar(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	categoria, valor, periodo, ref, err := dispensaFlags(cmd)
	if err != nil {
		return err
	}
	numero, _ := cmd.Flags().GetString("numero")
	objeto, _ := cmd.Flags().GetString("objeto")
	forcar, _ := cmd.Flags().GetBool("forcar")

	engine, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := engine.Registrar(cmd.Context(), limite.NovaDispensa{
		CategoriaID: categoria,
		Numero:      numero,
		Objeto:      objeto,
		Valor:       valor,
		Periodo:     periodo,
		Referencia:  ref,
		Forcar:      forcar,
	})

	var rejeitada *model.ErrValidacaoRejeitada
	if errors.As(err, &rejeitada) {
		fmt.Printf("Dispensa BLOQUEADA:\n")
		fmt.Printf("  %s\n", rejeitada.Mensagem)
		fmt.Printf("  Percentual projetado: %.1f%% (bloqueio em %.0f%%)\n",
			rejeitada.PercentualProjetado, rejeitada.BloqueioPercentual)
		if rejeitada.ValorExcedido > 0 {
			fmt.Printf("  Valor excedido:       R$ %.2f\n", rejeitada.ValorExcedido)
		}
		fmt.Printf("Use --forcar para registrar mesmo assim.\n")
		return err
	}
	if err != nil {
		return fmt.Errorf("registrar dispensa: %w", err)
	}

	fmt.Printf("Dispensa registrada:\n")
	fmt.Printf("  Id:         %s\n", d.ID)
	fmt.Printf("  Categoria:  %s\n", d.CategoriaID)
	fmt.Printf("  Valor:      R$ %.2f\n", d.Valor)
	fmt.Printf("  Periodo:    %s\n", d.Periodo)
	if d.Periodo == model.PeriodoMensal {
		fmt.Printf("  Referencia: %02d/%d\n", d.ReferenciaMes, d.ReferenciaAno)
	} else {
		fmt.Printf("  Referencia: %d\n", d.ReferenciaAno)
	}
	return nil
}

func runDispensaValidar(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	categoria, valor, periodo, ref, err := dispensaFlags(cmd)
	if err != nil {
		return err
	}

	engine, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := engine.Validar(cmd.Context(), categoria, valor, periodo, ref)
	if err != nil {
		return fmt.Errorf("validar dispensa: %w", err)
	}

	fmt.Printf("Validacao (%s):\n", periodo)
	fmt.Printf("  Pode gerar:           %v\n", res.PodeGerar)
	fmt.Printf("  Uso atual:            R$ %.2f\n", res.ValorAtual)
	fmt.Printf("  Uso projetado:        R$ %.2f (%.1f%%)\n", res.ValorProjetado, res.PercentualProjetado)
	fmt.Printf("  Limite:               R$ %.2f\n", res.Limite)
	fmt.Printf("  Atingira alerta:      %v\n", res.AtingiraAlerta)
	if res.ValorExcedido > 0 {
		fmt.Printf("  Valor excedido:       R$ %.2f\n", res.ValorExcedido)
	}
	if res.Mensagem != "" {
		fmt.Printf("  %s\n", res.Mensagem)
	}
	return nil
}

func runDispensaCancelar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := engine.Cancelar(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("cancelar dispensa: %w", err)
	}

	fmt.Printf("Dispensa %s cancelada (R$ %.2f liberados do bucket %s).\n", d.ID, d.Valor, d.Periodo)
	return nil
}

func runDispensaList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	categoria, _ := cmd.Flags().GetString("categoria")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.ListDispensas(cmd.Context(), storage.DispensaFilter{
		CategoriaID: categoria,
		Status:      model.StatusDispensa(status),
		Limit:       limit,
	})
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("Nenhuma dispensa encontrada.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tCATEGORIA\tVALOR\tPERIODO\tREFERENCIA\tSTATUS\tCRIADA\n")
	for _, d := range list {
		referencia := fmt.Sprintf("%d", d.ReferenciaAno)
		if d.Periodo == model.PeriodoMensal {
			referencia = fmt.Sprintf("%02d/%d", d.ReferenciaMes, d.ReferenciaAno)
		}
		fmt.Fprintf(w, "%s\t%s\tR$ %.2f\t%s\t%s\t%s\t%s\n",
			d.ID, d.CategoriaID, d.Valor, d.Periodo, referencia, d.Status,
			d.CriadaEm.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
