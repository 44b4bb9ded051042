package form

// Field keys the backend expects in a parameters submission.
const (
	KeyUser   = "USER"
	KeyUUID   = "UUID"
	KeySerial = "NUMERO_SERIAL"
	KeyBrand  = "MARCA_TAXIMETRO"
	KeyModel  = "MODELO_TAXIMETRO"
	KeyPlate  = "PATENTE"
	KeyPort   = "port"
	KeyDate   = "DATE"
)

// Constants restored on every reset.
const (
	DefaultBrand = "CIBTRON"
	DefaultModel = "WB-001"
)

// Field describes one input of the parameter form.
type Field struct {
	Key      string
	Label    string
	Required bool
	// Rules are validator tags checked when the field is non-empty.
	Rules string
	// Fixed fields survive a reset.
	Fixed bool
	// Session fields belong to the operator session and are never
	// overwritten by a prefill.
	Session bool
}

// Fields is the parameter form in display order.
var Fields = []Field{
	{Key: KeyUser, Label: "Operator", Required: true, Fixed: true, Session: true},
	{Key: KeyUUID, Label: "Build UUID", Required: true, Rules: "uuid4", Fixed: true, Session: true},
	{Key: KeySerial, Label: "Device serial no.", Required: true, Rules: "not_placeholder"},
	{Key: "NUMERO_SELLO", Label: "Seal no.", Required: true},
	{Key: KeyBrand, Label: "Taximeter brand", Required: true, Fixed: true},
	{Key: KeyModel, Label: "Taximeter model", Required: true, Fixed: true},
	{Key: "NOMBRE_PROPIETARIO", Label: "Owner first name", Required: true},
	{Key: "APELLIDO_PROPIETARIO", Label: "Owner last name", Required: true},
	{Key: "MARCA_VEHICULO", Label: "Vehicle brand", Required: true},
	{Key: "YEAR_VEHICULO", Label: "Vehicle year", Required: true, Rules: "digits,len=4"},
	{Key: KeyPlate, Label: "Plate", Required: true, Rules: "max=10"},
	{Key: "RESOLUCION", Label: "Resolution", Required: true},
	{Key: "CANTIDAD_PULSOS", Label: "Pulse divisor", Required: true, Rules: "digits"},
	{Key: "TARIFA_INICIAL", Label: "Initial fare", Required: true, Rules: "numeric"},
	{Key: "TARIFA_CAIDA_PARCIAL_METROS", Label: "Partial drop (metres)", Required: true, Rules: "numeric"},
	{Key: "TARIFA_CAIDA_PARCIAL_MINUTO", Label: "Partial drop (minute)", Required: true, Rules: "numeric"},
	{Key: "MOSTRAR_VELOCIDAD_EN_PANTALLA", Label: "Show metres"},
	{Key: "COLOR_FONDO_PANTALLA", Label: "Background colour"},
	{Key: "COLOR_LETRAS_PANTALLA", Label: "Text colour"},
	{Key: "COLOR_PRECIO_PANTALLA", Label: "Price colour"},
	{Key: "PROPAGANDA_1", Label: "Advert 1"},
	{Key: "PROPAGANDA_2", Label: "Advert 2"},
	{Key: "PROPAGANDA_3", Label: "Advert 3"},
	{Key: "PROPAGANDA_4", Label: "Advert 4"},
}

// Lookup returns the field with key.
func Lookup(key string) (Field, bool) {
	for _, f := range Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Label returns the display label of key, or key itself when unknown.
func Label(key string) string {
	if key == KeyDate {
		return "Build date"
	}
	if f, ok := Lookup(key); ok {
		return f.Label
	}
	return key
}
