package services

import "sort"

// Field is a canonical property column.
type Field string

const (
	FieldName         Field = "nome"
	FieldImage        Field = "imagem"
	FieldImage2       Field = "imagem2"
	FieldPrice        Field = "valor"
	FieldCondo        Field = "condominio"
	FieldArea         Field = "m2"
	FieldStreet       Field = "rua"
	FieldNeighborhood Field = "bairro"
	FieldLocation     Field = "localizacao"
	FieldLink         Field = "link"
	FieldRooms        Field = "quartos"
	FieldParking      Field = "garagem"
	FieldAdvantages   Field = "vantagens"
	FieldKeywords     Field = "palavrasChaves"
	FieldSite         Field = "site"
)

// SiteMapping lists, per canonical field, the column headers a site uses,
// most preferred first.
type SiteMapping map[Field][]string

// SiteScraper is the consolidated workbook written by the external scraper.
const SiteScraper = "scraper"

// siteMappings is the alias table for every supported source site.
var siteMappings = map[string]SiteMapping{
	"quintoandar": {
		FieldName:     {"Nome", "nome", "Título", "titulo"},
		FieldImage:    {"Imagem", "imagem", "Foto", "foto"},
		FieldPrice:    {"Valor", "valor", "Preço", "preco"},
		FieldArea:     {"M²", "m2", "Area", "area"},
		FieldLocation: {"Localização", "localizacao", "Endereço", "endereco"},
		FieldLink:     {"Link", "link", "URL", "url"},
		FieldRooms:    {"Quartos", "quartos"},
		FieldParking:  {"Garagem", "garagem", "Vagas", "vagas"},
		FieldSite:     {"Site", "site"},
	},
	"imovelnaweb": {
		FieldName:         {"Titulo", "titulo", "Título", "Nome", "nome"},
		FieldImage:        {"Imagem1", "imagem1", "Imagem", "imagem"},
		FieldImage2:       {"Imagem2", "imagem2"},
		FieldPrice:        {"Preço", "Preco", "preco", "Valor", "valor"},
		FieldCondo:        {"Condominio", "condominio", "Condomínio"},
		FieldArea:         {"Area", "area", "Área", "área", "M²", "m2"},
		FieldStreet:       {"Rua", "rua", "Endereço", "endereco"},
		FieldNeighborhood: {"Bairro", "bairro"},
		FieldLocation:     {"Localização", "localizacao", "Endereço", "endereco"},
		FieldLink:         {"Link", "link", "URL", "url"},
		FieldRooms:        {"Quartos", "quartos"},
		FieldParking:      {"Garagem", "garagem", "Vagas", "vagas"},
		FieldAdvantages:   {"Vantagens", "vantagens"},
		FieldKeywords:     {"PalavrasChaves", "palavraschaves", "Palavras-chave", "Keywords"},
		FieldSite:         {"Site", "site"},
	},
	"olx": {
		FieldName:     {"Título", "titulo", "Nome", "nome"},
		FieldImage:    {"Imagem", "imagem", "Foto", "foto"},
		FieldPrice:    {"Preço", "preco", "Valor", "valor"},
		FieldArea:     {"Tamanho", "tamanho", "M²", "m2"},
		FieldLocation: {"Localização", "localizacao", "Cidade", "cidade"},
		FieldLink:     {"Link", "link", "URL", "url"},
		FieldRooms:    {"Quartos", "quartos"},
		FieldParking:  {"Garagem", "garagem"},
		FieldSite:     {"Site", "site"},
	},
	"zapimoveis": {
		FieldName:     {"Título", "titulo", "Nome", "nome"},
		FieldImage:    {"Imagem", "imagem"},
		FieldPrice:    {"Valor", "valor", "Preço", "preco"},
		FieldArea:     {"Área", "area", "M²", "m2"},
		FieldLocation: {"Endereço", "endereco", "Localização", "localizacao"},
		FieldLink:     {"Link", "link"},
		FieldRooms:    {"Quartos", "quartos"},
		FieldParking:  {"Vagas", "vagas", "Garagem", "garagem"},
		FieldSite:     {"Site", "site"},
	},
	"vivareal": {
		FieldName:     {"Título", "titulo", "Nome", "nome"},
		FieldImage:    {"Foto", "foto", "Imagem", "imagem"},
		FieldPrice:    {"Preço", "preco", "Valor", "valor"},
		FieldArea:     {"Área útil", "area", "M²", "m2"},
		FieldLocation: {"Endereço", "endereco", "Localização", "localizacao"},
		FieldLink:     {"Link", "link"},
		FieldRooms:    {"Quartos", "quartos"},
		FieldParking:  {"Vagas", "vagas"},
		FieldSite:     {"Site", "site"},
	},
	"netimoveis": {
		FieldName:     {"Título", "titulo", "Nome", "nome"},
		FieldImage:    {"Imagem", "imagem", "Foto", "foto"},
		FieldPrice:    {"Valor", "valor", "Preço", "preco"},
		FieldArea:     {"Área", "area", "M²", "m2"},
		FieldLocation: {"Endereço", "endereco", "Localização", "localizacao"},
		FieldLink:     {"Link", "link", "URL", "url"},
		FieldRooms:    {"Quartos", "quartos"},
		FieldParking:  {"Garagem", "garagem", "Vagas", "vagas"},
		FieldSite:     {"Site", "site"},
	},
	"loft": {
		FieldName:     {"Título", "titulo", "Nome", "nome"},
		FieldImage:    {"Imagem", "imagem"},
		FieldPrice:    {"Preço", "preco", "Valor", "valor"},
		FieldArea:     {"Área", "area", "M²", "m2"},
		FieldLocation: {"Endereço", "endereco"},
		FieldLink:     {"Link", "link"},
		FieldRooms:    {"Quartos", "quartos"},
		FieldParking:  {"Vagas", "vagas"},
		FieldSite:     {"Site", "site"},
	},
	"chavesnamao": {
		FieldName:     {"Título", "titulo", "Descrição", "descricao"},
		FieldImage:    {"Foto", "foto", "Imagem", "imagem"},
		FieldPrice:    {"Valor", "valor", "Preço", "preco"},
		FieldArea:     {"Área", "area", "Tamanho", "tamanho"},
		FieldLocation: {"Localização", "localizacao", "Endereço", "endereco"},
		FieldLink:     {"Link", "link"},
		FieldRooms:    {"Quartos", "quartos"},
		FieldParking:  {"Garagem", "garagem"},
		FieldSite:     {"Site", "site"},
	},
	"casamineira": {
		FieldName:         {"Título", "titulo", "Nome", "nome"},
		FieldImage:        {"Imagem", "imagem", "Foto", "foto"},
		FieldPrice:        {"Preço", "preco", "Valor", "valor"},
		FieldArea:         {"Área", "area", "M²", "m2"},
		FieldStreet:       {"Rua", "rua", "Endereço", "endereco"},
		FieldNeighborhood: {"Bairro", "bairro"},
		FieldLocation:     {"Localização", "localizacao"},
		FieldLink:         {"Link", "link"},
		FieldRooms:        {"Quartos", "quartos"},
		FieldParking:      {"Garagem", "garagem", "Vagas", "vagas"},
		FieldSite:         {"Site", "site"},
	},
	SiteScraper: {
		FieldName:         {"Nome", "nome", "título", "Título"},
		FieldImage:        {"Imagem", "imagem"},
		FieldImage2:       {"Imagem2", "imagem2"},
		FieldPrice:        {"Valor", "valor"},
		FieldCondo:        {"Condominio", "condominio"},
		FieldArea:         {"M²", "m²", "m2"},
		FieldStreet:       {"Rua", "rua"},
		FieldNeighborhood: {"Bairro", "bairro"},
		FieldLocation:     {"Localização", "localização", "localizacao"},
		FieldLink:         {"Link", "link"},
		FieldRooms:        {"Quartos", "quartos"},
		FieldParking:      {"Vagas", "vagas", "Garagem", "garagem"},
		FieldAdvantages:   {"Vantagens", "vantagens"},
		FieldKeywords:     {"PalavrasChave", "PalavrasChaves", "palavrasChaves"},
		FieldSite:         {"Fonte", "fonte", "Site", "site"},
	},
}

// imageFallback is tried when a site's own image aliases are all empty.
var imageFallback = []string{"Imagem", "imagem", "Foto", "foto", "Image", "image"}

// LookupSite returns the mapping for a site identifier.
func LookupSite(site string) (SiteMapping, bool) {
	m, ok := siteMappings[site]
	return m, ok
}

// Sites returns the supported site identifiers in alphabetical order.
func Sites() []string {
	sites := make([]string, 0, len(siteMappings))
	for s := range siteMappings {
		sites = append(sites, s)
	}
	sort.Strings(sites)
	return sites
}
