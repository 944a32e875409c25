package config

// Locales swept by the locales-and-pages scenario
var Locales = []string{
	"af", "am", "ar", "as", "az", "be", "bg", "bn", "bs", "ca", "cs", "cy", "da", "de",
	"el", "en_CA", "es", "et", "eu", "fa", "fi", "fil", "fr", "ga", "gl", "gu", "he",
	"hi", "hr", "hu", "hy", "id", "is", "it", "ja", "ka", "kk", "km", "kn", "ko", "ky",
	"lo", "lt", "lv", "mk", "ml", "mn", "mr", "ms", "my", "nb", "ne", "nl", "or", "pa",
	"pl", "ps", "pt", "ro", "ru", "si", "sk", "sl", "sq", "sr", "sv", "sw", "ta", "te",
	"th", "tr", "uk", "ur", "uz", "vi", "yue", "zh", "zu",
}

// Pages of the main vetting view
var Pages = []string{
	"Alphabetic_Information", "Numbering_Systems", "Locale_Display_Patterns",
	"Languages_A_D", "Languages_E_J", "Languages_K_N", "Languages_O_S", "Languages_T_Z",
	"Scripts", "Territories", "Keys", "Gregorian", "Generic", "Fields",
	"Compact_Decimal_Formatting", "Symbols", "Number_Formatting_Patterns",
	"Currencies", "Length", "Area", "Mass", "Displaying_Lists", "Transforms",
}

// AnnotationPages hold the emoji keyword and name annotations
var AnnotationPages = []string{
	"Smileys", "People", "Body", "Animal", "Plant", "Food", "Travel", "Activities",
	"Objects", "Symbols2", "Flags",
}
