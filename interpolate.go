package dem

// bilinear blends the samples m (top left), n (top right), o (bottom left),
// and p (bottom right) with fractional offsets dLat down and dLon across.
func bilinear(m, n, o, p, dLat, dLon float64) float64 {
	return 0 +
		(1-dLat)*(1-dLon)*m +
		dLon*(1-dLat)*n +
		(1-dLon)*dLat*o +
		dLat*dLon*p
}
