// Package tabela holds the statutory dispensation ceilings used to default
// category limits. Tables are loaded from YAML files so updated legal values
// can ship without a rebuild.
package tabela

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/compras-gov/dispensa-guard/pkg/model"
)

// Teto is one statutory ceiling entry.
type Teto struct {
	Tipo               model.TipoCategoria `yaml:"tipo"`
	LimiteAnual        float64             `yaml:"limite_anual"`
	LimiteMensal       float64             `yaml:"limite_mensal"`
	AlertaPercentual   float64             `yaml:"alerta_percentual"`
	BloqueioPercentual float64             `yaml:"bloqueio_percentual"`
}

// Tabela is a named set of statutory ceilings.
type Tabela struct {
	Nome     string `yaml:"nome"`
	Vigencia string `yaml:"vigencia"`
	Tetos    []Teto `yaml:"tetos"`

	porTipo map[model.TipoCategoria]Teto
}

// TetoPara returns the ceiling entry for a classification.
func (t *Tabela) TetoPara(tipo model.TipoCategoria) (Teto, error) {
	teto, ok := t.porTipo[tipo]
	if !ok {
		return Teto{}, fmt.Errorf("tabela %q: tipo %q sem teto definido", t.Nome, tipo)
	}
	return teto, nil
}

func (t *Tabela) index() {
	t.porTipo = make(map[model.TipoCategoria]Teto, len(t.Tetos))
	for _, teto := range t.Tetos {
		t.porTipo[teto.Tipo] = teto
	}
}

// Load reads a YAML ceiling table from disk.
func Load(path string) (*Tabela, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tabela file %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML ceiling data from raw bytes.
func LoadFromBytes(data []byte) (*Tabela, error) {
	var t Tabela
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tabela: %w", err)
	}
	if t.Nome == "" {
		return nil, fmt.Errorf("tabela sem nome")
	}
	if len(t.Tetos) == 0 {
		return nil, fmt.Errorf("tabela %q sem tetos definidos", t.Nome)
	}
	t.index()
	return &t, nil
}

// Padrao returns the built-in table with the Lei 14.133/2021 ceilings as
// updated by Decreto 11.871/2023, used when no table file is configured.
func Padrao() *Tabela {
	t := &Tabela{
		Nome:     "lei-14133",
		Vigencia: "2024",
		Tetos: []Teto{
			{Tipo: model.TipoMaterial, LimiteAnual: 59906.02, LimiteMensal: 4992.17, AlertaPercentual: 70, BloqueioPercentual: 90},
			{Tipo: model.TipoServico, LimiteAnual: 59906.02, LimiteMensal: 4992.17, AlertaPercentual: 70, BloqueioPercentual: 90},
		},
	}
	t.index()
	return t
}

// Registry manages ceiling tables by name.
type Registry struct {
	mu      sync.RWMutex
	tabelas map[string]*Tabela
}

// NewRegistry creates an empty table registry.
func NewRegistry() *Registry {
	return &Registry{
		tabelas: make(map[string]*Tabela),
	}
}

// Register adds a table to the registry.
func (r *Registry) Register(t *Tabela) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tabelas[t.Nome]; exists {
		return fmt.Errorf("tabela %q already registered", t.Nome)
	}
	r.tabelas[t.Nome] = t
	return nil
}

// Get returns a table by name.
func (r *Registry) Get(nome string) (*Tabela, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tabelas[nome]
	if !ok {
		return nil, fmt.Errorf("tabela %q not found", nome)
	}
	return t, nil
}

// All returns all registered tables.
func (r *Registry) All() []*Tabela {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Tabela, 0, len(r.tabelas))
	for _, t := range r.tabelas {
		list = append(list, t)
	}
	return list
}
