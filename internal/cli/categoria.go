package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/compras-gov/dispensa-guard/pkg/model"
)

var categoriaCmd = &cobra.Command{
	Use:   "categoria",
	Short: "Gerencia categorias de material e servico",
}

var categoriaSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Cria ou atualiza uma categoria",
	RunE:  runCategoriaSet,
}

var categoriaListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lista as categorias cadastradas",
	RunE:  runCategoriaList,
}

var categoriaStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Mostra o consumo atual dos limites de uma categoria",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoriaStatus,
}

var categoriaDesativarCmd = &cobra.Command{
	Use:   "desativar <id>",
	Short: "Desativa uma categoria sem remover o historico",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoriaDesativar,
}

func init() {
	rootCmd.AddCommand(categoriaCmd)
	categoriaCmd.AddCommand(categoriaSetCmd)
	categoriaCmd.AddCommand(categoriaListCmd)
	categoriaCmd.AddCommand(categoriaStatusCmd)
	categoriaCmd.AddCommand(categoriaDesativarCmd)

	categoriaSetCmd.Flags().String("id", "", "Id da categoria (vazio cria uma nova)")
	categoriaSetCmd.Flags().StringP("nome", "n", "", "Nome da categoria")
	categoriaSetCmd.Flags().StringP("tipo", "t", "material", "Classificacao (material, servico)")
	categoriaSetCmd.Flags().String("descricao", "", "Descricao livre")
	categoriaSetCmd.Flags().Float64("limite-anual", 0, "Limite anual de dispensa em R$")
	categoriaSetCmd.Flags().Float64("limite-mensal", 0, "Limite mensal de dispensa em R$")
	categoriaSetCmd.Flags().Float64("alerta-em", 70, "Percentual de alerta")
	categoriaSetCmd.Flags().Float64("bloqueio-em", 90, "Percentual de bloqueio")
	categoriaSetCmd.Flags().String("tabela", "", "Tabela legal usada como padrao para os valores nao informados")
	_ = categoriaSetCmd.MarkFlagRequired("nome")
}

func runCategoriaSet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	id, _ := cmd.Flags().GetString("id")
	nome, _ := cmd.Flags().GetString("nome")
	tipo, _ := cmd.Flags().GetString("tipo")
	descricao, _ := cmd.Flags().GetString("descricao")
	limiteAnual, _ := cmd.Flags().GetFloat64("limite-anual")
	limiteMensal, _ := cmd.Flags().GetFloat64("limite-mensal")
	alertaEm, _ := cmd.Flags().GetFloat64("alerta-em")
	bloqueioEm, _ := cmd.Flags().GetFloat64("bloqueio-em")
	tabelaNome, _ := cmd.Flags().GetString("tabela")

	cat := &model.Categoria{
		ID:                   id,
		Nome:                 nome,
		Tipo:                 model.TipoCategoria(tipo),
		Descricao:            descricao,
		LimiteDispensaAnual:  limiteAnual,
		LimiteDispensaMensal: limiteMensal,
		AlertaPercentual:     alertaEm,
		BloqueioPercentual:   bloqueioEm,
		Ativo:                true,
	}

	if tabelaNome != "" {
		registry, err := initTabelas(cfg)
		if err != nil {
			return err
		}
		t, err := registry.Get(tabelaNome)
		if err != nil {
			return err
		}
		teto, err := t.TetoPara(cat.Tipo)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("limite-anual") {
			cat.LimiteDispensaAnual = teto.LimiteAnual
		}
		if !cmd.Flags().Changed("limite-mensal") {
			cat.LimiteDispensaMensal = teto.LimiteMensal
		}
		if !cmd.Flags().Changed("alerta-em") && teto.AlertaPercentual > 0 {
			cat.AlertaPercentual = teto.AlertaPercentual
		}
		if !cmd.Flags().Changed("bloqueio-em") && teto.BloqueioPercentual > 0 {
			cat.BloqueioPercentual = teto.BloqueioPercentual
		}
	}

	if err := cat.Validar(); err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveCategoria(cmd.Context(), cat); err != nil {
		return fmt.Errorf("salvar categoria: %w", err)
	}

	fmt.Printf("Categoria salva:\n")
	fmt.Printf("  Id:             %s\n", cat.ID)
	fmt.Printf("  Nome:           %s\n", cat.Nome)
	fmt.Printf("  Tipo:           %s\n", cat.Tipo)
	fmt.Printf("  Limite anual:   R$ %.2f\n", cat.LimiteDispensaAnual)
	fmt.Printf("  Limite mensal:  R$ %.2f\n", cat.LimiteDispensaMensal)
	fmt.Printf("  Alerta em:      %.0f%%\n", cat.AlertaPercentual)
	fmt.Printf("  Bloqueio em:    %.0f%%\n", cat.BloqueioPercentual)

	return nil
}

func runCategoriaList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cats, err := store.ListCategorias(cmd.Context(), false)
	if err != nil {
		return err
	}

	if len(cats) == 0 {
		fmt.Println("Nenhuma categoria cadastrada.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNOME\tTIPO\tANUAL\tMENSAL\tALERTA\tBLOQUEIO\tATIVO\n")
	for _, c := range cats {
		fmt.Fprintf(w, "%s\t%s\t%s\tR$ %.2f\tR$ %.2f\t%.0f%%\t%.0f%%\t%v\n",
			c.ID, c.Nome, c.Tipo,
			c.LimiteDispensaAnual, c.LimiteDispensaMensal,
			c.AlertaPercentual, c.BloqueioPercentual, c.Ativo)
	}
	return w.Flush()
}

func runCategoriaStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, store, err := initEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	id := args[0]
	anual, err := engine.AvaliarCategoria(cmd.Context(), id, model.PeriodoAnual, model.ReferenciaAtual(model.PeriodoAnual))
	if err != nil {
		return err
	}
	mensal, err := engine.AvaliarCategoria(cmd.Context(), id, model.PeriodoMensal, model.ReferenciaAtual(model.PeriodoMensal))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PERIODO\tREFERENCIA\tUSADO\tLIMITE\tPERCENTUAL\tSTATUS\n")
	fmt.Fprintf(w, "anual\t%d\tR$ %.2f\tR$ %.2f\t%.1f%%\t%s\n",
		anual.Referencia.Ano, anual.ValorUsado, anual.Limite, anual.PercentualUsado, anual.Status)
	fmt.Fprintf(w, "mensal\t%02d/%d\tR$ %.2f\tR$ %.2f\t%.1f%%\t%s\n",
		mensal.Referencia.Mes, mensal.Referencia.Ano, mensal.ValorUsado, mensal.Limite, mensal.PercentualUsado, mensal.Status)
	return w.Flush()
}

func runCategoriaDesativar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DesativarCategoria(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Categoria %s desativada.\n", args[0])
	return nil
}
